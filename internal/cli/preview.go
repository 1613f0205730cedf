package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/retrolire/retrolire/internal/history"
	"github.com/retrolire/retrolire/internal/render"
	"github.com/retrolire/retrolire/internal/store"
)

const (
	previewEntry = "select e.*, get_tags(e, '') as tags from entry e\nwhere e.id = $1"
	previewFiles = "select filepath from file where entry = $1\n" +
		"union select \"URL\" from entry e where e.id = $1"
	previewNotes = "select notes from reading where id = $1"

	headSQL       = "select * from _head where id = $1"
	listTagsSQL   = "select distinct tag from tag order by tag"
	listFieldsSQL = "select list_fields()"
)

// width returns the terminal width for output written to o.
func (a *app) width(o *IO) int {
	fd := -1
	if f, ok := o.Out().(*os.File); ok {
		fd = int(f.Fd())
	}

	return render.TermWidth(a.env, fd)
}

// preview prints the entry, its files and URL, and its reading notes. The
// three queries share one connection.
func (a *app) preview(ctx context.Context, o *IO, id string) (err error) {
	conn, err := a.connector.Connect(ctx)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := conn.Close(ctx)
		if err == nil {
			err = closeErr
		}
	}()

	entry, err := conn.Query(ctx, previewEntry, id)
	if err != nil {
		return err
	}

	if entry.Len() == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatch, id)
	}

	err = render.Expanded(o.Out(), entry, a.width(o))
	if err != nil {
		return err
	}

	files, err := conn.Query(ctx, previewFiles, id)
	if err != nil {
		return err
	}

	err = render.Column(o.Out(), files)
	if err != nil {
		return err
	}

	notes, err := conn.Query(ctx, previewNotes, id)
	if err != nil {
		return err
	}

	if text := notes.Value(0, 0); text != "" {
		o.Printf("\n\n%s", text)
	}

	return nil
}

// hidden builds a helper command taking one id argument.
func (a *app) hidden(usage, short string, exec func(ctx context.Context, o *IO, id string) error) *Command {
	return &Command{
		Flags:  flag.NewFlagSet(usage, flag.ContinueOnError),
		Usage:  usage,
		Short:  short,
		Hidden: true,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: ID", ErrArgumentRequired)
			}

			return exec(ctx, o, args[0])
		},
	}
}

func (a *app) previewCmd() *Command {
	return a.hidden("_preview ID", "Preview an entry", a.preview)
}

func (a *app) headCmd() *Command {
	return a.hidden("_head ID", "Print the head of an entry", func(ctx context.Context, o *IO, id string) error {
		t, err := store.QueryOnce(ctx, a.connector, headSQL, id)
		if err != nil {
			return err
		}

		return render.Values(o.Out(), t)
	})
}

func (a *app) listTagsCmd() *Command {
	return &Command{
		Flags:  flag.NewFlagSet("_ltags", flag.ContinueOnError),
		Usage:  "_ltags",
		Short:  "List every tag",
		Hidden: true,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			t, err := store.QueryOnce(ctx, a.connector, listTagsSQL)
			if err != nil {
				return err
			}

			return render.Column(o.Out(), t)
		},
	}
}

func (a *app) listFieldsCmd() *Command {
	return &Command{
		Flags:  flag.NewFlagSet("_lfields", flag.ContinueOnError),
		Usage:  "_lfields",
		Short:  "List the entry fields",
		Hidden: true,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return a.printSingle(ctx, o, listFieldsSQL)
		},
	}
}

// cacheCmd previews the entry picked last. The tag picker shows it while
// tags are chosen.
func (a *app) cacheCmd() *Command {
	return &Command{
		Flags:  flag.NewFlagSet("_cache", flag.ContinueOnError),
		Usage:  "_cache",
		Short:  "Preview the last picked entry",
		Hidden: true,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			h := a.openHistory(ctx)
			if h == nil {
				return errors.New("history is disabled")
			}

			defer func() { _ = h.Close() }()

			p, err := h.Last(ctx)
			if errors.Is(err, history.ErrEmpty) {
				return nil
			}

			if err != nil {
				return err
			}

			return a.preview(ctx, o, p.Entry)
		},
	}
}
