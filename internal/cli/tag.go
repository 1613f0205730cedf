package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/retrolire/retrolire/internal/picker"
	"github.com/retrolire/retrolire/internal/query"
	"github.com/retrolire/retrolire/internal/stmt"
	"github.com/retrolire/retrolire/internal/store"
)

const (
	selectTags  = "select string_agg(tag, E'\\n') from tag where entry = $1::text"
	replaceTags = "select string_to_tags($1::text, $2::text)"
	allTags     = "select distinct tag from tag"

	// maxPickedTags bounds one tag pick insert.
	maxPickedTags = 20
)

// ErrTooManyTags is returned when more tags are picked than one insert takes.
var ErrTooManyTags = fmt.Errorf("too many tags picked (max %d)", maxPickedTags)

func (a *app) tagCmd() *Command {
	fs := flag.NewFlagSet("tag", flag.ContinueOnError)
	s := newSelection(fs)

	return &Command{
		Flags: fs,
		Usage: "tag [pick] [filters]",
		Short: "Edit the tags of an entry",
		Long: "Pick an entry and edit its tags in the editor, one per line.\n" +
			"With pick, choose tags among the existing ones and add them.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			pick := len(args) > 0 && args[0] == "pick"
			if len(args) > 0 && !pick {
				return fmt.Errorf("%w: tag %s", ErrUnknownCommand, args[0])
			}

			command := "tag"
			if pick {
				command = "tag pick"
			}

			id, err := a.pickEntry(ctx, o, s, command)
			if err != nil {
				return err
			}

			if pick {
				return a.pickTags(ctx, o, id)
			}

			return a.editValue(ctx, o, id, selectTags, replaceTags, "txt")
		},
	}
}

// pickTags lets the user choose among the existing tags and adds the chosen
// ones to the entry.
func (a *app) pickTags(ctx context.Context, o *IO, id string) error {
	t, err := store.QueryOnce(ctx, a.connector, allTags)
	if err != nil {
		return err
	}

	tags := make([]string, 0, t.Len())
	for _, row := range t.Rows {
		tags = append(tags, row[0])
	}

	argv := picker.FzfMulti(a.cfg.Picker).Append(
		"--preview", a.self+" _cache; printf '%s\\n' {+}",
		"--preview-window", "right,60%",
	)

	reply, err := a.picker.PickLines(ctx, argv.Args(), tags)
	if err != nil {
		return err
	}

	picked := splitLines(reply)
	if len(picked) == 0 {
		return query.ErrNoSelection
	}

	sql, err := insertTagsStatement(len(picked))
	if err != nil {
		return err
	}

	n, err := store.ExecOnce(ctx, a.connector, sql, append([]string{id}, picked...)...)
	if err != nil {
		return err
	}

	o.Printf("%d tag(s) added to %s\n", n, id)

	return nil
}

// splitLines returns the non-empty lines of a multi-selection reply. Tags
// may contain spaces.
func splitLines(reply []byte) []string {
	lines := strings.Split(strings.TrimRight(string(reply), "\n"), "\n")

	out := lines[:0]
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}

	return out
}

// insertTagsStatement builds the insert of n tags bound to $2..$n+1 for the
// entry bound to $1.
func insertTagsStatement(n int) (string, error) {
	if n > maxPickedTags {
		return "", ErrTooManyTags
	}

	buf := stmt.NewBuffer(query.DefaultStatementLimit)
	err := buf.Append("insert into tag (entry, tag) select $1, unnest(array_remove(array[")
	if err != nil {
		return "", err
	}

	for i := range n {
		sep := ", "
		if i == 0 {
			sep = ""
		}

		err = buf.Appendf("%s$%d", sep, i+2)
		if err != nil {
			return "", err
		}
	}

	err = buf.Append("], '')) on conflict do nothing")
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}
