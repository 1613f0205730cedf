package stmt

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Keywords joining predicates. The first predicate of a filter opens the
// WHERE clause, every later one is joined with AND.
const (
	whereKeyword = "\n\nwhere "
	andKeyword   = "\nand "
)

// Ordering clauses for the recency modes.
const (
	lastClause   = "\norder by r.lastedit desc limit 1"
	recentClause = "\norder by r.lastedit desc\n"
)

// Limits on the argument of the --var option.
const (
	maxVarLen   = 128
	maxFieldLen = 48
	varDelim    = '.'
)

// Errors returned by ParseFieldValue.
var (
	ErrVarTooLong     = errors.New("option argument too long")
	ErrVarCharacter   = errors.New("unauthorized character in field (quote, newline or tab)")
	ErrVarNoDelimiter = fmt.Errorf("failed to parse field and value (no %q)", varDelim)
	ErrVarNoField     = errors.New("field name is empty")
)

// Recency selects the ordering modifier applied when a filter is rendered.
type Recency int

const (
	// RecencyNone leaves the filter untouched.
	RecencyNone Recency = iota
	// RecencyLast replaces every accumulated predicate with an ordering on
	// the edit time limited to one row.
	RecencyLast
	// RecencyRecent orders the matching rows by edit time, newest first.
	RecencyRecent
)

func (r Recency) String() string {
	switch r {
	case RecencyLast:
		return "last"
	case RecencyRecent:
		return "recent"
	default:
		return "none"
	}
}

// Predicate is a predicate template. The placeholder of the bound value
// goes between Prefix and Suffix.
type Predicate struct {
	Prefix string
	Suffix string
}

// Predicates used by the filter options.
var (
	TagPredicate = Predicate{
		Prefix: "exists (select 1 from tag t where t.entry = e.id and t.tag = ",
		Suffix: ")",
	}
	NotesPredicate = Predicate{
		Prefix: "regexp_like(r.notes, ",
		Suffix: "::text, 'i') ",
	}
	QuotePredicate = Predicate{
		Prefix: "(select exists (select 1 from quote where entry = e.id and regexp_like(quote, ",
		Suffix: "::text, 'i'))) ",
	}
	ConceptPredicate = Predicate{
		Prefix: "(select exists (select 1 from concept where entry = e.id and regexp_like(name, ",
		Suffix: "::text, 'i'))) ",
	}
	IDPredicate = Predicate{
		Prefix: "e.id = ",
		Suffix: "::text",
	}
)

// HasFileOrURL restricts entries to those with an attached file or a URL.
const HasFileOrURL = `(select exists (select 1 from file where entry = e.id) or "URL" is not null)` + "\n"

// Filter accumulates predicates into one boolean expression and keeps the
// positional parameter list in step with the placeholders it writes.
//
// Filter is not safe for concurrent use.
type Filter struct {
	buf        *Buffer
	params     []string
	predicates int
	recency    Recency
}

// NewFilter returns an empty filter whose predicate text is limited to
// limit bytes (<= 0 means unbounded).
func NewFilter(limit int) *Filter {
	return &Filter{buf: NewBuffer(limit)}
}

// Add appends prefix, the next placeholder and suffix as one predicate, and
// binds value to that placeholder. On error nothing is appended.
func (f *Filter) Add(prefix, suffix, value string) error {
	placeholder := "$" + strconv.Itoa(len(f.params)+1)

	err := f.buf.Append(f.keyword() + prefix + placeholder + suffix)
	if err != nil {
		return fmt.Errorf("add predicate: %w", err)
	}

	f.params = append(f.params, value)
	f.predicates++

	return nil
}

// AddPredicate is Add for a predicate template.
func (f *Filter) AddPredicate(p Predicate, value string) error {
	return f.Add(p.Prefix, p.Suffix, value)
}

// AddRaw appends a predicate without a placeholder.
func (f *Filter) AddRaw(expr string) error {
	err := f.buf.Append(f.keyword() + expr)
	if err != nil {
		return fmt.Errorf("add predicate: %w", err)
	}

	f.predicates++

	return nil
}

// AddField appends a case-insensitive regular expression match on an entry
// column. The column name is quoted as an identifier; the pattern is bound.
func (f *Filter) AddField(field, pattern string) error {
	quoted := pgx.Identifier{field}.Sanitize()

	return f.Add("regexp_like(e."+quoted+"::text, ", "::text, 'i') ", pattern)
}

// SetRecency sets the ordering modifier applied by Clause.
func (f *Filter) SetRecency(r Recency) { f.recency = r }

// Recency returns the ordering modifier.
func (f *Filter) Recency() Recency { return f.recency }

// Params returns a copy of the parameter list. Entry i binds placeholder $i+1.
func (f *Filter) Params() []string {
	return append([]string(nil), f.params...)
}

// Clause renders the predicates with the ordering modifier.
//
// RecencyLast discards the accumulated predicates: the result is only the
// ordering clause limited to one row.
func (f *Filter) Clause() string {
	switch f.recency {
	case RecencyLast:
		return lastClause
	case RecencyRecent:
		return f.buf.String() + recentClause
	default:
		return f.buf.String()
	}
}

// Bound returns the parameters referenced by Clause. Under RecencyLast no
// placeholder survives, so no parameter is bound.
func (f *Filter) Bound() []string {
	if f.recency == RecencyLast {
		return nil
	}

	return f.Params()
}

func (f *Filter) keyword() string {
	if f.predicates == 0 {
		return whereKeyword
	}

	return andKeyword
}

// Assemble builds base followed by the rendered filter into a buffer of
// limit bytes. A nil filter contributes nothing.
func Assemble(base string, f *Filter, limit int) (string, error) {
	buf := NewBuffer(limit)

	err := buf.Append(base)
	if err != nil {
		return "", fmt.Errorf("assemble statement: %w", err)
	}

	if f != nil {
		err = buf.Append(f.Clause())
		if err != nil {
			return "", fmt.Errorf("assemble statement: %w", err)
		}
	}

	return buf.String(), nil
}

// ParseFieldValue splits a "field.pattern" option argument. The field part
// may not contain quotes, newlines or tabs.
func ParseFieldValue(s string) (string, string, error) {
	if len(s) >= maxVarLen {
		return "", "", fmt.Errorf("%w (max %d)", ErrVarTooLong, maxVarLen)
	}

	for i := 0; i < len(s) && i < maxFieldLen; i++ {
		switch s[i] {
		case '\n', '\t', '\'', '"':
			return "", "", fmt.Errorf("%w: %q", ErrVarCharacter, s)
		case varDelim:
			if i == 0 {
				return "", "", fmt.Errorf("%w: %q", ErrVarNoField, s)
			}

			return s[:i], s[i+1:], nil
		}
	}

	return "", "", fmt.Errorf("%w: %q", ErrVarNoDelimiter, s)
}
