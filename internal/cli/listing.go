package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/retrolire/retrolire/internal/query"
	"github.com/retrolire/retrolire/internal/render"
	"github.com/retrolire/retrolire/internal/stmt"
	"github.com/retrolire/retrolire/internal/store"
)

const (
	listBase     = "select e.* from entry e\njoin reading r on r.id = e.id\n"
	listBaseTags = "select e.*, get_tags(e, '') as tags from entry e\njoin reading r on r.id = e.id\n"
	jsonBase     = "select jsonb_pretty(jsonb_agg(to_csl(e)))from entry e join reading r on r.id = e.id\n"
)

// queryFiltered assembles base with the filter and runs it on its own
// connection.
func (a *app) queryFiltered(ctx context.Context, base string, f *stmt.Filter) (*store.Table, error) {
	sql, err := stmt.Assemble(base, f, query.DefaultStatementLimit)
	if err != nil {
		return nil, err
	}

	a.log.Debug("statement", zap.String("sql", sql), zap.Int("params", len(f.Bound())))

	return store.QueryOnce(ctx, a.connector, sql, f.Bound()...)
}

func (a *app) listCmd() *Command {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	filter := newFilter(fs)

	return &Command{
		Flags: fs,
		Usage: "list [tags] [filters]",
		Short: "List matching entries with all their fields",
		Long:  "Print every matching entry as a block of fields. With tags, the tags are listed too.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			base := listBase

			if len(args) > 0 {
				if args[0] != "tags" {
					return fmt.Errorf("%w: list %s", ErrUnknownCommand, args[0])
				}

				base = listBaseTags
			}

			t, err := a.queryFiltered(ctx, base, filter)
			if err != nil {
				return err
			}

			return render.Expanded(o.Out(), t, a.width(o))
		},
	}
}

func (a *app) jsonCmd() *Command {
	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	filter := newFilter(fs)

	var output string

	fs.StringVarP(&output, "output", "o", "", "write to `FILE` instead of stdout")

	return &Command{
		Flags: fs,
		Usage: "json [-o FILE] [filters]",
		Short: "Export matching entries as CSL-JSON",
		Long:  "Print the matching entries as a CSL-JSON array, or write it atomically to FILE.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			// An aggregate cannot be ordered by edit time.
			filter.SetRecency(stmt.RecencyNone)

			t, err := a.queryFiltered(ctx, jsonBase, filter)
			if err != nil {
				return err
			}

			doc := t.Value(0, 0)
			if doc == "" {
				return nil
			}

			if output == "" {
				o.Println(doc)

				return nil
			}

			err = a.fs.WriteFileAtomic(output, []byte(doc+"\n"))
			if err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			return nil
		},
	}
}
