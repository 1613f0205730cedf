package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/retrolire/retrolire/internal/picker"
	"github.com/retrolire/retrolire/internal/query"
	"github.com/retrolire/retrolire/internal/stmt"
)

const (
	quoteBase = "select q.id, e.id, q.quote from quote q \n" +
		"join entry e on e.id = q.entry \n" +
		"join reading r on r.id = e.id "
	quoteText = "select quote_to_string_from_id($1::int)"

	conceptBase = "select c.id, c.name, c.definition, e.id from concept c \n" +
		"join entry e on e.id = c.entry \n" +
		"join reading r on r.id = e.id "
	conceptCite = "select cite_concept($1::int)"
)

// annotation builds a command picking among quotes or concepts rather than
// entries. The entry filters still apply to the entry they belong to.
func (a *app) annotation(usage, short, base, render string, extra func(argv *stmt.Argv)) *Command {
	fs := flag.NewFlagSet(usage, flag.ContinueOnError)
	s := &selection{filter: newFilter(fs)}

	fs.BoolVarP(&s.exact, "exact", "e", false, "exact matching in the picker")
	fs.BoolVarP(&s.output, "output", "o", false, "print the rows instead of picking")

	return &Command{
		Flags: fs,
		Usage: usage,
		Short: short,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			argv := a.entryArgvBare(s)
			extra(argv)

			res, err := a.orchestrator(o.Out()).Run(ctx, query.Request{
				Base:        base,
				Filter:      s.filter,
				Interactive: !s.output,
				Argv:        argv,
			})
			if err != nil {
				return err
			}

			if res.State == query.StatePrinted {
				return nil
			}

			return a.printSingle(ctx, o, render, res.Selected)
		},
	}
}

// entryArgvBare is the picker command line without the entry preview.
func (a *app) entryArgvBare(s *selection) *stmt.Argv {
	argv := picker.Fzf(a.cfg.Picker)
	if s.exact {
		argv.Append("--exact")
	}

	return argv
}

func (a *app) quoteCmd() *Command {
	return a.annotation("quote [filters]", "Print a quote", quoteBase, quoteText, func(argv *stmt.Argv) {
		argv.Append("--preview-window", "bottom,4", "--wrap", "--preview", a.self+" _head {2}")
	})
}

func (a *app) referCmd() *Command {
	return a.annotation("refer [filters]", "Print the citation of a concept", conceptBase, conceptCite,
		func(argv *stmt.Argv) {
			argv.Append("--preview-window", "bottom,4", "--preview", a.self+" _head {4}")
		})
}
