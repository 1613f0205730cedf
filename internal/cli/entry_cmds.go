package cli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/retrolire/retrolire/internal/fs"
	"github.com/retrolire/retrolire/internal/picker"
	"github.com/retrolire/retrolire/internal/query"
	"github.com/retrolire/retrolire/internal/stmt"
	"github.com/retrolire/retrolire/internal/store"
)

// Errors for the entry commands.
var (
	ErrNoFile       = errors.New("no file for this entry")
	ErrFileNotFound = errors.New("file not found")
	ErrUnknownField = errors.New("no such field in entry")
)

const (
	selectNotes = "select notes from reading where id = $1::text"
	updateNotes = "update reading set notes = trim($2::text, E'\\n\\t ') || E'\\n'\nwhere id = $1::text"

	insertFile = "insert into file (entry, filepath) select $1, $2"
	deleteSQL  = "delete from entry where id = $1"

	selectPaths = "select filepath from file where entry = $1\n" +
		"union select \"URL\" from entry\nwhere id = $1 and \"URL\" is not null"

	fieldType = "select data_type from information_schema.columns " +
		"where table_name = 'entry' and column_name = $1"
)

// selecting builds a command that picks one entry and hands its id to act.
func (a *app) selecting(usage, short, long string, setup func(fs *flag.FlagSet),
	act func(ctx context.Context, o *IO, s *selection, id string, args []string) error,
) *Command {
	fs := flag.NewFlagSet(usage, flag.ContinueOnError)
	s := newSelection(fs)

	if setup != nil {
		setup(fs)
	}

	name, _, _ := strings.Cut(usage, " ")

	return &Command{
		Flags: fs,
		Usage: usage,
		Short: short,
		Long:  long,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := a.pickEntry(ctx, o, s, name)
			if err != nil {
				return err
			}

			return act(ctx, o, s, id, args)
		},
	}
}

func (a *app) editCmd() *Command {
	return a.selecting("edit [filters]", "Edit the reading notes of an entry",
		"Pick an entry and edit its reading notes in the editor. The notes are\n"+
			"stored trimmed, with a single trailing newline.",
		nil,
		func(ctx context.Context, o *IO, _ *selection, id string, _ []string) error {
			return a.editValue(ctx, o, id, selectNotes, updateNotes, "md")
		})
}

func (a *app) citeCmd() *Command {
	return a.selecting("cite [filters]", "Print the id of an entry", "",
		nil,
		func(_ context.Context, o *IO, _ *selection, id string, _ []string) error {
			o.Println(id)

			return nil
		})
}

func (a *app) printCmd() *Command {
	return a.selecting("print [filters]", "Print an entry with its files and notes", "",
		nil,
		func(ctx context.Context, o *IO, _ *selection, id string, _ []string) error {
			return a.preview(ctx, o, id)
		})
}

func (a *app) deleteCmd() *Command {
	var yes bool

	return a.selecting("delete [-y] [filters]", "Delete an entry",
		"Pick an entry and delete it after confirmation.",
		func(fs *flag.FlagSet) {
			fs.BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
		},
		func(ctx context.Context, o *IO, _ *selection, id string, _ []string) error {
			if !yes {
				ok, err := confirm(o, fmt.Sprintf("Delete entry %s? [y/N] ", id))
				if err != nil {
					return err
				}

				if !ok {
					o.ErrPrintln("aborted")

					return nil
				}
			}

			n, err := store.ExecOnce(ctx, a.connector, deleteSQL, id)
			if err != nil {
				return err
			}

			if n == 0 {
				return fmt.Errorf("%w: %s", ErrNoMatch, id)
			}

			o.Println("deleted", id)

			return nil
		})
}

func (a *app) fileCmd() *Command {
	fs := flag.NewFlagSet("file", flag.ContinueOnError)
	s := newSelection(fs)

	return &Command{
		Flags: fs,
		Usage: "file FILE [filters]",
		Short: "Attach a file to an entry",
		Long:  "Pick an entry and attach FILE to it. The file must exist; its absolute path is stored.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: FILE", ErrArgumentRequired)
			}

			path, err := resolveFile(a.fs, args[0])
			if err != nil {
				return err
			}

			id, err := a.pickEntry(ctx, o, s, "file")
			if err != nil {
				return err
			}

			_, err = store.ExecOnce(ctx, a.connector, insertFile, id, path)
			if err != nil {
				return err
			}

			o.Println(path)

			return nil
		},
	}
}

// resolveFile returns the absolute path of an existing file, symlinks
// resolved.
func resolveFile(fsys fs.FS, name string) (string, error) {
	info, err := fsys.Stat(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrFileNotFound, name)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}

	return resolved, nil
}

func (a *app) openCmd() *Command {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	s := newSelection(fs)

	return &Command{
		Flags: fs,
		Usage: "open [filters]",
		Short: "Open a file or the URL of an entry",
		Long: "Pick among the entries having a file or a URL, then among its files\n" +
			"and URL, and start the configured opener on it.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			err := s.filter.AddRaw(stmt.HasFileOrURL)
			if err != nil {
				return err
			}

			id, err := a.pickEntry(ctx, o, s, "open")
			if err != nil {
				return err
			}

			t, err := store.QueryOnce(ctx, a.connector, selectPaths, id)
			if err != nil {
				return err
			}

			if t.Len() == 0 {
				return fmt.Errorf("%w: %s", ErrNoFile, id)
			}

			paths := make([]string, 0, t.Len())
			for _, row := range t.Rows {
				paths = append(paths, row[0])
			}

			reply, err := a.picker.PickLines(ctx, picker.FzfLines(a.cfg.Picker).Append("--wrap").Args(), paths)
			if err != nil {
				return err
			}

			target := strings.TrimSuffix(string(reply), "\n")
			if target == "" {
				return query.ErrNoSelection
			}

			return a.open(target)
		},
	}
}

// open starts the opener on target in its own session and does not wait.
func (a *app) open(target string) error {
	argv := strings.Fields(a.cfg.Opener)
	if len(argv) == 0 {
		return errors.New("opener is empty")
	}

	//nolint:gosec,noctx // the opener outlives the command
	cmd := exec.Command(argv[0], append(argv[1:], target)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("start opener: %w", err)
	}

	a.log.Debug("opener started", zap.Strings("argv", cmd.Args), zap.Int("pid", cmd.Process.Pid))

	return cmd.Process.Release()
}

func (a *app) updateCmd() *Command {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	s := newSelection(fs)

	return &Command{
		Flags: fs,
		Usage: "update FIELD [filters]",
		Short: "Edit one field of an entry",
		Long: "Pick an entry and edit the value of FIELD in the editor. Text fields\n" +
			"are stored without trailing newlines.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: FIELD", ErrArgumentRequired)
			}

			field := args[0]

			t, err := store.QueryOnce(ctx, a.connector, fieldType, field)
			if err != nil {
				return err
			}

			if t.Len() == 0 {
				return fmt.Errorf("%w: %s", ErrUnknownField, field)
			}

			id, err := a.pickEntry(ctx, o, s, "update")
			if err != nil {
				return err
			}

			quoted := store.QuoteIdentifier(field)
			selectSQL := "select " + quoted + " from entry where id = $1"

			updateSQL := "update entry set " + quoted + " = $2 where id = $1"
			if isText(t.Value(0, 0)) {
				updateSQL = "update entry set " + quoted + " = rtrim($2::text, E'\\n') where id = $1"
			}

			return a.editValue(ctx, o, id, selectSQL, updateSQL, "txt")
		},
	}
}

func isText(dataType string) bool {
	switch dataType {
	case "text", "character varying", "character":
		return true
	default:
		return false
	}
}
