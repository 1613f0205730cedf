package stmt_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/retrolire/retrolire/internal/stmt"
)

func Test_Argv_Appends_After_Prefix(t *testing.T) {
	t.Parallel()

	argv := stmt.NewArgv("fzf", "--read0")
	argv.Append("--exact").Append("--preview", "retrolire _preview {1}")

	want := []string{"fzf", "--read0", "--exact", "--preview", "retrolire _preview {1}"}
	if diff := cmp.Diff(want, argv.Args()); diff != "" {
		t.Errorf("Args() mismatch (-want +got):\n%s", diff)
	}

	if got, want := argv.Name(), "fzf"; got != want {
		t.Errorf("Name()=%q, want=%q", got, want)
	}

	if got, want := argv.Len(), 5; got != want {
		t.Errorf("Len()=%d, want=%d", got, want)
	}
}

func Test_Argv_Args_Returns_A_Copy(t *testing.T) {
	t.Parallel()

	prefix := []string{"fzf"}
	argv := stmt.NewArgv(prefix...)
	prefix[0] = "changed"

	args := argv.Args()
	args[0] = "mutated"

	if got, want := argv.Name(), "fzf"; got != want {
		t.Errorf("Name()=%q, want=%q", got, want)
	}

	if got := stmt.NewArgv().Name(); got != "" {
		t.Errorf("empty Name()=%q", got)
	}
}
