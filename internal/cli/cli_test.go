package cli_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/retrolire/retrolire/internal/cli"
	"github.com/retrolire/retrolire/internal/fs"
	"github.com/retrolire/retrolire/internal/history"
)

var entryColumns = []string{"id", "title", "someone"}

// newCLI returns a CLI over a fake store listing two readings and a picker
// replying with replies.
func newCLI(t *testing.T, replies ...string) (*cli.CLI, *fakeStore, *fakePicker) {
	t.Helper()

	s := newFakeStore().on("from entry e join reading r", entryColumns,
		[]string{"latour1979", "Laboratory Life", "Bruno Latour"},
		[]string{"becker1963", "Outsiders", "Howard Becker"},
	)
	p := newFakePicker(s, replies...)

	c := cli.NewCLI(t)
	c.Store = s
	c.Picker = p

	return c, s, p
}

func writeConfig(t *testing.T, c *cli.CLI, content string) {
	t.Helper()

	dir := filepath.Join(c.Env["XDG_CONFIG_HOME"], "retrolire")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o600))
}

// createMockEditor creates an editor script that replaces the edited file
// with content.
func createMockEditor(t *testing.T, content string) string {
	t.Helper()

	mockEditor := filepath.Join(t.TempDir(), "mock-editor")
	script := "#!/bin/sh\nprintf '%s' '" + content + "' > \"$1\"\n"

	writeErr := os.WriteFile(mockEditor, []byte(script), 0o700)
	if writeErr != nil {
		t.Fatalf("failed to create mock editor: %v", writeErr)
	}

	return mockEditor
}

func Test_Cite_Prints_The_Picked_Id(t *testing.T) {
	t.Parallel()

	c, _, p := newCLI(t, "latour1979")

	if got, want := c.MustRun("cite"), "latour1979"; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	if got, want := p.count(), 1; got != want {
		t.Fatalf("picker calls=%d, want=%d", got, want)
	}

	call := p.call(0)

	if got, want := call.table.Len(), 2; got != want {
		t.Errorf("rows sent=%d, want=%d", got, want)
	}

	if call.open != 0 {
		t.Errorf("%d connection(s) open while picking, want 0", call.open)
	}

	if got, want := call.argv[0], "fzf"; got != want {
		t.Errorf("argv[0]=%q, want=%q", got, want)
	}

	cli.AssertContains(t, strings.Join(call.argv, " "), "retrolire _preview {1}")
}

func Test_Pick_Is_Recorded_In_History(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t, "becker1963")
	c.MustRun("cite")

	ctx := context.Background()

	h, err := history.Open(ctx, c.HistoryPath())
	require.NoError(t, err)

	t.Cleanup(func() { _ = h.Close() })

	last, err := h.Last(ctx)
	require.NoError(t, err)

	if got, want := last.Entry, "becker1963"; got != want {
		t.Errorf("Entry=%q, want=%q", got, want)
	}

	if got, want := last.Command, "cite"; got != want {
		t.Errorf("Command=%q, want=%q", got, want)
	}
}

func Test_History_Disabled_Does_Not_Record(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t, "becker1963")
	writeConfig(t, c, `{"history_file": "-"}`)

	c.MustRun("cite")

	if _, err := os.Stat(c.HistoryPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("history file should not exist, stat err=%v", err)
	}
}

func Test_Filter_Flags_Bind_In_Command_Line_Order(t *testing.T) {
	t.Parallel()

	c, s, _ := newCLI(t, "latour1979")
	c.MustRun("cite", "-t", "sociology", "-v", "author.latour", "--id", "latour1979")

	call, ok := s.find("from entry e join reading r")
	if !ok {
		t.Fatal("entry query not run")
	}

	if diff := cmp.Diff([]string{"sociology", "latour", "latour1979"}, call.params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	cli.AssertContains(t, call.sql, "\n\nwhere exists (select 1 from tag t where t.entry = e.id and t.tag = $1)")
	cli.AssertContains(t, call.sql, "\nand regexp_like(e.\"author\"::text, $2::text, 'i') ")
	cli.AssertContains(t, call.sql, "\nand e.id = $3::text")
}

func Test_Last_Flag_Drops_Predicates(t *testing.T) {
	t.Parallel()

	c, s, _ := newCLI(t, "latour1979")
	c.MustRun("cite", "-t", "sociology", "-l")

	call, ok := s.find("from entry e join reading r")
	if !ok {
		t.Fatal("entry query not run")
	}

	if len(call.params) != 0 {
		t.Errorf("params=%v, want none", call.params)
	}

	cli.AssertContains(t, call.sql, "order by r.lastedit desc limit 1")
	cli.AssertNotContains(t, call.sql, "where")
}

func Test_Invalid_Var_Flag_Fails(t *testing.T) {
	t.Parallel()

	c, _, p := newCLI(t)

	stderr := c.MustFail("cite", "-v", "author")
	cli.AssertContains(t, stderr, "failed to parse field and value")

	if p.count() != 0 {
		t.Error("picker should not run")
	}
}

func Test_Output_Flag_Prints_Rows_Without_Picking(t *testing.T) {
	t.Parallel()

	c, _, p := newCLI(t)

	stdout, _, code := c.Run("cite", "-o")
	if code != 0 {
		t.Fatalf("exit code=%d", code)
	}

	want := "latour1979\n\tLaboratory Life\n\tBruno Latour\x00becker1963\n\tOutsiders\n\tHoward Becker\x00"
	if stdout != want {
		t.Errorf("stdout=%q, want=%q", stdout, want)
	}

	if p.count() != 0 {
		t.Error("picker should not run")
	}
}

func Test_No_Matching_Entry_Exits_Zero_Silently(t *testing.T) {
	t.Parallel()

	s := newFakeStore()
	p := newFakePicker(s, "unused")

	c := cli.NewCLI(t)
	c.Store = s
	c.Picker = p

	stdout, stderr, code := c.Run("cite")
	if code != 0 {
		t.Errorf("exit code=%d, want 0 (stderr %q)", code, stderr)
	}

	if stdout != "" {
		t.Errorf("stdout=%q, want empty", stdout)
	}

	if p.count() != 0 {
		t.Error("picker should not run without rows")
	}
}

func Test_Empty_Pick_Exits_Zero(t *testing.T) {
	t.Parallel()

	c, s, _ := newCLI(t)

	if got := c.MustRun("delete", "-y"); got != "" {
		t.Errorf("stdout=%q, want empty", got)
	}

	if len(s.execs()) != 0 {
		t.Error("nothing should be deleted")
	}
}

func Test_Store_Error_Exits_One(t *testing.T) {
	t.Parallel()

	s := newFakeStore().fail("from entry", errors.New("relation \"entry\" does not exist"))

	c := cli.NewCLI(t)
	c.Store = s
	c.Picker = newFakePicker(s)

	stderr := c.MustFail("cite")
	cli.AssertContains(t, stderr, "error:")
	cli.AssertContains(t, stderr, "relation \"entry\" does not exist")
}

func Test_Unknown_Command_Fails_With_Usage(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t)

	stderr := c.MustFail("edi")
	cli.AssertContains(t, stderr, "unknown command: edi")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Default_Command_Runs_Without_Command_Name(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t, "becker1963")
	writeConfig(t, c, `{
		// cite by default
		"default_command": "cite",
	}`)

	if got, want := c.MustRun("-i", "becker1963"), "becker1963"; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}
}

func Test_Bad_Default_Command_Fails(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t)
	writeConfig(t, c, `{"default_command": "nope"}`)

	stderr := c.MustFail()
	cli.AssertContains(t, stderr, "default_command does not name a command")
}

func Test_Help_Lists_Visible_Commands(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t)

	stdout := c.MustRun("--help")
	cli.AssertContains(t, stdout, "edit [filters]")
	cli.AssertContains(t, stdout, "print-config")
	cli.AssertNotContains(t, stdout, "_preview")
	cli.AssertNotContains(t, stdout, "_cache")
}

func Test_Command_Help(t *testing.T) {
	t.Parallel()

	c, _, p := newCLI(t)

	stdout := c.MustRun("edit", "--help")
	cli.AssertContains(t, stdout, "Usage: retrolire edit [filters]")
	cli.AssertContains(t, stdout, "--tag")

	if p.count() != 0 {
		t.Error("picker should not run")
	}
}

func Test_Edit_Writes_Edited_Notes(t *testing.T) {
	t.Parallel()

	c, s, _ := newCLI(t, "latour1979")
	s.on("select notes from reading", []string{"notes"}, []string{"old notes\n"})
	c.Env["EDITOR"] = createMockEditor(t, "new notes")

	c.MustRun("edit")

	execs := s.execs()
	if got, want := len(execs), 1; got != want {
		t.Fatalf("execs=%d, want=%d", got, want)
	}

	cli.AssertContains(t, execs[0].sql, "update reading set notes")

	if diff := cmp.Diff([]string{"latour1979", "new notes"}, execs[0].params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func Test_Update_Unknown_Field_Fails_Before_Picking(t *testing.T) {
	t.Parallel()

	c, _, p := newCLI(t, "latour1979")

	stderr := c.MustFail("update", "nofield")
	cli.AssertContains(t, stderr, "no such field in entry")

	if p.count() != 0 {
		t.Error("picker should not run")
	}
}

func Test_Update_Trims_Text_Fields(t *testing.T) {
	t.Parallel()

	c, s, _ := newCLI(t, "latour1979")
	s.on("information_schema.columns", []string{"data_type"}, []string{"text"})
	s.on(`select "title" from entry`, []string{"title"}, []string{"Laboratory Life"})
	c.Env["EDITOR"] = createMockEditor(t, "Laboratory Life: The Construction")

	c.MustRun("update", "title")

	execs := s.execs()
	if got, want := len(execs), 1; got != want {
		t.Fatalf("execs=%d, want=%d", got, want)
	}

	cli.AssertContains(t, execs[0].sql, `update entry set "title" = rtrim($2::text`)

	if diff := cmp.Diff([]string{"latour1979", "Laboratory Life: The Construction"}, execs[0].params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func Test_Delete_Asks_For_Confirmation(t *testing.T) {
	t.Parallel()

	t.Run("yes deletes", func(t *testing.T) {
		t.Parallel()

		c, s, _ := newCLI(t, "becker1963")

		stdout, stderr, code := c.RunWithInput("y\n", "delete")
		if code != 0 {
			t.Fatalf("exit code=%d, stderr=%q", code, stderr)
		}

		cli.AssertContains(t, stderr, "Delete entry becker1963? [y/N]")
		cli.AssertContains(t, stdout, "deleted becker1963")

		call, ok := s.find("delete from entry")
		if !ok {
			t.Fatal("delete not executed")
		}

		if diff := cmp.Diff([]string{"becker1963"}, call.params); diff != "" {
			t.Errorf("params mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("anything else aborts", func(t *testing.T) {
		t.Parallel()

		c, s, _ := newCLI(t, "becker1963")

		_, stderr, code := c.RunWithInput("n\n", "delete")
		if code != 0 {
			t.Fatalf("exit code=%d", code)
		}

		cli.AssertContains(t, stderr, "aborted")

		if _, ok := s.find("delete from entry"); ok {
			t.Error("entry should not be deleted")
		}
	})
}

func Test_File_Must_Exist_Before_Picking(t *testing.T) {
	t.Parallel()

	c, _, p := newCLI(t, "latour1979")

	stderr := c.MustFail("file", filepath.Join(c.Dir, "missing.pdf"))
	cli.AssertContains(t, stderr, "file not found")

	if p.count() != 0 {
		t.Error("picker should not run")
	}
}

func Test_File_Attaches_Absolute_Path(t *testing.T) {
	t.Parallel()

	c, s, _ := newCLI(t, "latour1979")

	path := filepath.Join(c.Dir, "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))

	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)

	c.MustRun("file", path)

	call, ok := s.find("insert into file")
	if !ok {
		t.Fatal("insert not executed")
	}

	if diff := cmp.Diff([]string{"latour1979", resolved}, call.params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func Test_Open_Picks_A_Path_And_Starts_The_Opener(t *testing.T) {
	t.Parallel()

	c, s, p := newCLI(t, "latour1979", "/library/latour.pdf\n")
	s.on("select filepath from file", []string{"filepath"},
		[]string{"/library/latour.pdf"},
		[]string{"https://example.org/latour"},
	)
	writeConfig(t, c, `{"opener": "true"}`)

	c.MustRun("open")

	if got, want := p.count(), 2; got != want {
		t.Fatalf("picker calls=%d, want=%d", got, want)
	}

	entries, ok := s.find("from entry e join reading r")
	if !ok {
		t.Fatal("entry query not run")
	}

	cli.AssertContains(t, entries.sql, `"URL" is not null`)

	if diff := cmp.Diff([]string{"/library/latour.pdf", "https://example.org/latour"}, p.call(1).lines); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func Test_Open_Without_File_Fails(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t, "latour1979")

	stderr := c.MustFail("open")
	cli.AssertContains(t, stderr, "no file for this entry")
}

func Test_Tag_Pick_Inserts_Chosen_Tags(t *testing.T) {
	t.Parallel()

	c, s, p := newCLI(t, "latour1979", "sociology\nscience\n")
	s.on("select distinct tag from tag", []string{"tag"}, []string{"sociology"}, []string{"science"}, []string{"art"})

	stdout := c.MustRun("tag", "pick")
	cli.AssertContains(t, stdout, "added to latour1979")

	call, ok := s.find("insert into tag")
	if !ok {
		t.Fatal("insert not executed")
	}

	cli.AssertContains(t, call.sql, "array[$2, $3]")

	if diff := cmp.Diff([]string{"latour1979", "sociology", "science"}, call.params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	cli.AssertContains(t, strings.Join(p.call(1).argv, " "), "--multi")
}

func Test_Tag_Pick_Keeps_Spaces_Inside_Tags(t *testing.T) {
	t.Parallel()

	c, s, _ := newCLI(t, "latour1979", "social theory\nscience\n")
	s.on("select distinct tag from tag", []string{"tag"}, []string{"social theory"}, []string{"science"})

	c.MustRun("tag", "pick")

	call, ok := s.find("insert into tag")
	if !ok {
		t.Fatal("insert not executed")
	}

	cli.AssertContains(t, call.sql, "array[$2, $3]")

	if diff := cmp.Diff([]string{"latour1979", "social theory", "science"}, call.params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func Test_Quote_Rejects_Entry_Picker_Flags(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"quote", "-p"}, {"refer", "--showtags"}} {
		c, _, _ := newCLI(t)

		stderr := c.MustFail(args...)
		cli.AssertContains(t, stderr, "unknown")
	}
}

func Test_Quote_Prints_The_Formatted_Quote(t *testing.T) {
	t.Parallel()

	s := newFakeStore().
		on("from quote q", []string{"id", "id", "quote"}, []string{"12", "latour1979", "a quote"}).
		on("quote_to_string_from_id", []string{"q"}, []string{"« a quote » [@latour1979, p. 3]"})
	p := newFakePicker(s, "12")

	c := cli.NewCLI(t)
	c.Store = s
	c.Picker = p

	if got, want := c.MustRun("quote", "-s", "lab"), "« a quote » [@latour1979, p. 3]"; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	call, _ := s.find("quote_to_string_from_id")
	if diff := cmp.Diff([]string{"12"}, call.params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	cli.AssertContains(t, strings.Join(p.call(0).argv, " "), "retrolire _head {2}")
}

func Test_List_Prints_Expanded_Entries(t *testing.T) {
	t.Parallel()

	s := newFakeStore().on("select e.* from entry e", []string{"id", "title"},
		[]string{"latour1979", "Laboratory Life"})

	c := cli.NewCLI(t)
	c.Store = s

	stdout := c.MustRun("list", "-t", "sociology")
	cli.AssertContains(t, stdout, "id   | latour1979")
	cli.AssertContains(t, stdout, "title| Laboratory Life")

	call, _ := s.find("select e.* from entry e")
	if diff := cmp.Diff([]string{"sociology"}, call.params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func Test_Json_Writes_Output_File(t *testing.T) {
	t.Parallel()

	s := newFakeStore().on("jsonb_agg(to_csl(e))", []string{"jsonb_pretty"}, []string{`[{"id": "latour1979"}]`})

	c := cli.NewCLI(t)
	c.Store = s

	out := filepath.Join(c.Dir, "refs.json")
	c.MustRun("json", "-r", "-o", out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	if got, want := string(data), "[{\"id\": \"latour1979\"}]\n"; got != want {
		t.Errorf("file=%q, want=%q", got, want)
	}

	call, _ := s.find("jsonb_agg")
	cli.AssertNotContains(t, call.sql, "order by")
}

func Test_Json_Write_Failure_Exits_One(t *testing.T) {
	t.Parallel()

	s := newFakeStore().on("jsonb_agg(to_csl(e))", []string{"jsonb_pretty"}, []string{`[]`})

	c := cli.NewCLI(t)
	c.Store = s
	c.FS = fs.NewFaulty(fs.OpWriteFileAtomic)

	out := filepath.Join(c.Dir, "refs.json")

	stderr := c.MustFail("json", "-o", out)
	cli.AssertContains(t, stderr, "injected failure")

	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output should not exist, stat err=%v", err)
	}
}

func Test_Edit_Temp_File_Failure_Leaves_Notes_Untouched(t *testing.T) {
	t.Parallel()

	c, s, _ := newCLI(t, "latour1979")
	s.on("select notes from reading", []string{"notes"}, []string{"old notes\n"})
	c.FS = fs.NewFaulty(fs.OpCreateTemp)

	stderr := c.MustFail("edit")
	cli.AssertContains(t, stderr, "create temporary file")

	if len(s.execs()) != 0 {
		t.Error("notes should not be updated")
	}
}

func Test_History_Lists_Recent_Picks(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t, "latour1979", "becker1963")
	c.MustRun("cite")
	c.MustRun("cite")

	stdout := c.MustRun("history", "-o")
	lines := strings.Split(stdout, "\n")

	if got, want := len(lines), 2; got != want {
		t.Fatalf("lines=%d, want=%d: %q", got, want, stdout)
	}

	if !strings.HasPrefix(lines[0], "becker1963\tcite\t") {
		t.Errorf("first line=%q, want becker1963 first", lines[0])
	}
}

func Test_Print_Config_Shows_Sources(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t)

	stdout := c.MustRun("--connection", "dbname=test", "print-config")
	cli.AssertContains(t, stdout, `"connection": "dbname=test"`)
	cli.AssertContains(t, stdout, "(defaults only)")

	writeConfig(t, c, `{"picker": "sk"}`)

	stdout = c.MustRun("print-config")
	cli.AssertContains(t, stdout, `"picker": "sk"`)
	cli.AssertContains(t, stdout, "global_config=")
}

func Test_Missing_Explicit_Config_Fails(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t)

	stderr := c.MustFail("--config", filepath.Join(c.Dir, "nope.json"), "cite")
	cli.AssertContains(t, stderr, "config file not found")
}

func Test_Preview_Prints_Entry_Files_And_Notes(t *testing.T) {
	t.Parallel()

	s := newFakeStore().
		on("get_tags(e, '') as tags from entry e\nwhere", []string{"id", "title", "tags"},
			[]string{"latour1979", "Laboratory Life", "sociology"}).
		on("select filepath from file", []string{"filepath"}, []string{"/library/latour.pdf"}).
		on("select notes from reading", []string{"notes"}, []string{"inscriptions\n"})

	c := cli.NewCLI(t)
	c.Store = s

	stdout, stderr, code := c.Run("_preview", "latour1979")
	if code != 0 {
		t.Fatalf("exit code=%d, stderr=%s", code, stderr)
	}

	cli.AssertContains(t, stdout, "title| Laboratory Life")
	cli.AssertContains(t, stdout, "/library/latour.pdf\n")
	cli.AssertContains(t, stdout, "\n\ninscriptions\n")

	if got, want := s.opened, 1; got != want {
		t.Errorf("connections opened=%d, want=%d", got, want)
	}
}

func Test_Cache_Previews_Last_Pick(t *testing.T) {
	t.Parallel()

	c, s, _ := newCLI(t, "latour1979")
	s.on("get_tags(e, '') as tags from entry e\nwhere", []string{"id"}, []string{"latour1979"})

	c.MustRun("cite")

	stdout := c.MustRun("_cache")
	cli.AssertContains(t, stdout, "id| latour1979")
}

func Test_Add_Rejects_Unknown_Method(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t)

	stderr := c.MustFail("add", "arxiv", "1234")
	cli.AssertContains(t, stderr, "not an available method for add")

	stderr = c.MustFail("add", "doi")
	cli.AssertContains(t, stderr, "missing argument")
}

func Test_Add_Fails_When_File_Is_Missing(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t)

	for _, method := range []string{"json", "bibtex"} {
		stderr := c.MustFail("add", method, filepath.Join(c.Dir, "missing.json"))
		cli.AssertContains(t, stderr, "file not found")
	}
}
