package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/retrolire/retrolire/internal/picker"
	"github.com/retrolire/retrolire/internal/query"
	"github.com/retrolire/retrolire/internal/store"
)

const defaultHistoryLimit = 20

func (a *app) historyCmd() *Command {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.IntP("limit", "n", defaultHistoryLimit, "number of entries")
	output := fs.BoolP("output", "o", false, "print the history instead of picking")

	return &Command{
		Flags: fs,
		Usage: "history [-n N] [-o]",
		Short: "Pick among recently picked entries",
		Long:  "Pick among the entries picked most recently, newest first, and print its id.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			h := a.openHistory(ctx)
			if h == nil {
				return errors.New("history is disabled")
			}

			defer func() { _ = h.Close() }()

			t, err := h.Recent(ctx, *limit)
			if err != nil {
				return err
			}

			if t.Len() == 0 {
				return query.ErrNoSelection
			}

			humanized := humanizeTimes(t, time.Now())

			if *output {
				return picker.Encode(o.Out(), humanized, "\t", '\n')
			}

			reply, err := a.picker.Pick(ctx, picker.Fzf(a.cfg.Picker).Args(), humanized)
			if err != nil {
				return err
			}

			id := strings.TrimSuffix(string(reply), "\n")
			if id == "" {
				return query.ErrNoSelection
			}

			o.Println(id)

			return nil
		},
	}
}

// humanizeTimes returns a copy of the history rows with the Unix millisecond
// pick times replaced by relative times.
func humanizeTimes(t *store.Table, now time.Time) *store.Table {
	col := t.Column("picked")
	out := &store.Table{Columns: t.Columns, Rows: make([][]string, len(t.Rows))}

	for i, row := range t.Rows {
		row = append([]string(nil), row...)

		if col >= 0 && col < len(row) {
			ms, err := strconv.ParseInt(row[col], 10, 64)
			if err == nil {
				row[col] = humanize.RelTime(time.UnixMilli(ms), now, "ago", "from now")
			}
		}

		out.Rows[i] = row
	}

	return out
}
