package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/retrolire/retrolire/internal/query"
	"github.com/retrolire/retrolire/internal/stmt"
)

// entryBase lists the readings the picker shows: id, title and the first of
// author, editor and translator.
const entryBase = "select e.id, coalesce(e.title, e.url) as title \n" +
	", jsonb_concat_values(coalesce(e.author, e.editor, e.translator), ' ') as someone\n" +
	"from entry e join reading r on r.id = e.id "

// entryBaseTags is entryBase with the tags as a last column.
const entryBaseTags = "select e.id, coalesce(e.title, e.url) as title \n" +
	", jsonb_concat_values(coalesce(e.author, e.editor, e.translator), ' ') as someone\n" +
	", get_tags(e, '') as tags\n" +
	"from entry e join reading r on r.id = e.id "

// selection holds the filter flags shared by the selecting commands.
// Predicates are added to the filter as the flags are parsed, so they keep
// the command line order.
type selection struct {
	filter   *stmt.Filter
	exact    bool
	preview  bool
	showTags bool
	output   bool
}

// newSelection registers the filter flags and the picker flags on fs.
func newSelection(fs *flag.FlagSet) *selection {
	s := &selection{filter: newFilter(fs)}

	fs.BoolVarP(&s.exact, "exact", "e", false, "exact matching in the picker")
	fs.BoolVarP(&s.preview, "preview", "p", false, "show the preview window")
	fs.BoolVarP(&s.showTags, "showtags", "T", false, "show tags in the picker")
	fs.BoolVarP(&s.output, "output", "o", false, "print the rows instead of picking")

	return s
}

// newFilter registers the filter flags on fs and returns the filter they
// feed.
func newFilter(fs *flag.FlagSet) *stmt.Filter {
	f := stmt.NewFilter(clauseLimit)

	fs.VarP(fieldValue{f}, "var", "v", "field matches `FIELD.REGEX` (repeatable)")
	fs.VarP(predicateValue{f, stmt.TagPredicate}, "tag", "t", "entry has `TAG`")
	fs.VarP(predicateValue{f, stmt.NotesPredicate}, "search", "s", "notes match `REGEX`")
	fs.VarP(predicateValue{f, stmt.QuotePredicate}, "quote", "q", "a quote matches `REGEX`")
	fs.VarP(predicateValue{f, stmt.ConceptPredicate}, "concept", "c", "a concept matches `REGEX`")
	fs.VarP(predicateValue{f, stmt.IDPredicate}, "id", "i", "entry `ID`")

	last := fs.VarPF(recencyValue{f, stmt.RecencyLast}, "last", "l", "only the most recently edited entry")
	last.NoOptDefVal = "true"

	recent := fs.VarPF(recencyValue{f, stmt.RecencyRecent}, "recent", "r", "most recently edited first")
	recent.NoOptDefVal = "true"

	return f
}

// entryArgv builds the default picker command line for entries.
func (a *app) entryArgv(s *selection) *stmt.Argv {
	argv := a.entryArgvBare(s)

	window := a.cfg.PreviewWindow
	if s.preview {
		window = "right,45%"
	}

	argv.Append("--preview", a.self+" _preview {1}", "--preview-window", window)

	return argv
}

// pickEntry runs the orchestrator over the entries matching s and returns
// the selected id. With --output the rows are printed and ErrNoSelection is
// returned so the caller stops there.
func (a *app) pickEntry(ctx context.Context, o *IO, s *selection, command string) (string, error) {
	base := entryBase
	if s.showTags {
		base = entryBaseTags
	}

	res, err := a.orchestrator(o.Out()).Run(ctx, query.Request{
		Base:        base,
		Filter:      s.filter,
		Interactive: !s.output,
		Argv:        a.entryArgv(s),
	})
	if err != nil {
		return "", err
	}

	if res.State == query.StatePrinted {
		return "", query.ErrNoSelection
	}

	a.recordPick(ctx, o, res.Selected, command)

	return res.Selected, nil
}

type predicateValue struct {
	f *stmt.Filter
	p stmt.Predicate
}

func (v predicateValue) Set(s string) error { return v.f.AddPredicate(v.p, s) }
func (v predicateValue) String() string     { return "" }
func (v predicateValue) Type() string       { return "string" }

type fieldValue struct {
	f *stmt.Filter
}

func (v fieldValue) Set(s string) error {
	field, pattern, err := stmt.ParseFieldValue(s)
	if err != nil {
		return err
	}

	return v.f.AddField(field, pattern)
}

func (v fieldValue) String() string { return "" }
func (v fieldValue) Type() string   { return "string" }

// recencyValue is a boolean flag setting the filter's recency. The last
// recency flag on the command line wins.
type recencyValue struct {
	f *stmt.Filter
	r stmt.Recency
}

func (v recencyValue) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}

	if on {
		v.f.SetRecency(v.r)
	} else if v.f.Recency() == v.r {
		v.f.SetRecency(stmt.RecencyNone)
	}

	return nil
}

func (v recencyValue) String() string { return strconv.FormatBool(v.f.Recency() == v.r) }
func (v recencyValue) Type() string   { return "bool" }
