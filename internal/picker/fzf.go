package picker

import (
	"context"
	"io"

	"github.com/retrolire/retrolire/internal/stmt"
	"github.com/retrolire/retrolire/internal/store"
)

// selectFirst prints the leading field of the chosen row, also when only one
// row matches.
const selectFirst = "enter:become(echo -n {1}),one:become(echo -n {1})"

// Fzf returns the default picker command line: NUL separated records, cells
// split on FieldSep, the first field printed on selection, and an immediate
// exit when there is nothing to pick.
func Fzf(bin string) *stmt.Argv {
	if bin == "" {
		bin = "fzf"
	}

	return stmt.NewArgv(bin,
		"--read0",
		"-d", `\n\t`,
		"--tiebreak", "begin",
		"--bind", selectFirst,
		"-0",
	)
}

// FzfLines returns a command line picking one of several newline separated
// values. A single value is selected without asking.
func FzfLines(bin string) *stmt.Argv {
	if bin == "" {
		bin = "fzf"
	}

	return stmt.NewArgv(bin, "--tiebreak", "begin", "-1", "-0")
}

// FzfMulti returns a command line picking several newline separated values.
func FzfMulti(bin string) *stmt.Argv {
	if bin == "" {
		bin = "fzf"
	}

	return stmt.NewArgv(bin, "--multi")
}

// Process picks rows through an external picker process.
type Process struct {
	Options Options
}

// Pick sends t to the picker started from argv and returns its reply.
func (p *Process) Pick(ctx context.Context, argv []string, t *store.Table) ([]byte, error) {
	return Exchange(ctx, argv, func(w io.Writer) error {
		return Encode(w, t, FieldSep, RecordSep)
	}, p.Options)
}

// PickLines sends values one per line and returns the reply.
func (p *Process) PickLines(ctx context.Context, argv []string, values []string) ([]byte, error) {
	return Exchange(ctx, argv, func(w io.Writer) error {
		return EncodeLines(w, values)
	}, p.Options)
}
