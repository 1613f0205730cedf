// Package render prints query results for humans.
package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/sys/unix"

	"github.com/retrolire/retrolire/internal/store"
)

// DefaultWidth is used when the terminal width cannot be determined.
const DefaultWidth = 80

const (
	maxFieldName = 48
	minValueCols = 10
)

// ErrFieldNameTooLong is returned when a column name cannot be laid out.
var ErrFieldNameTooLong = fmt.Errorf("field name too long (max. %d characters)", maxFieldName)

// TermWidth returns the width to render for: $COLUMNS, then
// $FZF_PREVIEW_COLUMNS (set inside picker previews), then the size of the
// terminal on fd, then DefaultWidth.
func TermWidth(env map[string]string, fd int) int {
	for _, key := range []string{"COLUMNS", "FZF_PREVIEW_COLUMNS"} {
		raw, ok := env[key]
		if !ok || raw == "" {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && n > 0 {
			return n
		}
	}

	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err == nil && ws.Col > 0 {
		return int(ws.Col)
	}

	return DefaultWidth
}

// Expanded writes every row of t as a block of "name | value" lines, names
// padded to the longest one, long values wrapped under a continuation
// margin, blocks framed by rules of hyphens.
//
// Empty cells are skipped. NULL reads as empty, so a NULL column does not
// appear.
func Expanded(w io.Writer, t *store.Table, width int) error {
	if t == nil {
		return nil
	}

	if width <= 0 {
		width = DefaultWidth
	}

	nameWidth := 0

	for _, c := range t.Columns {
		n := runewidth.StringWidth(c)
		if n >= maxFieldName {
			return fmt.Errorf("%w: %q", ErrFieldNameTooLong, c)
		}

		nameWidth = max(nameWidth, n)
	}

	ruleWidth := max(width-4, 1)
	rule := strings.Repeat("-", ruleWidth)
	limit := max(ruleWidth-(nameWidth+1), minValueCols)
	margin := "\n" + strings.Repeat(" ", nameWidth) + `\  `

	bw := bufio.NewWriter(w)

	_, _ = bw.WriteString(rule)
	_ = bw.WriteByte('\n')

	for _, row := range t.Rows {
		for i, name := range t.Columns {
			if i >= len(row) || row[i] == "" {
				continue
			}

			_, _ = bw.WriteString(runewidth.FillRight(name, nameWidth))
			_, _ = bw.WriteString("| ")
			_, _ = bw.WriteString(strings.Join(wrap(row[i], limit), margin))
			_ = bw.WriteByte('\n')
		}

		_, _ = bw.WriteString(rule)
		_ = bw.WriteByte('\n')
	}

	return bw.Flush()
}

// wrap cuts s into chunks of at most cols display columns. Wide runes are
// never split.
func wrap(s string, cols int) []string {
	if runewidth.StringWidth(s) < cols {
		return []string{s}
	}

	var (
		chunks []string
		cur    strings.Builder
		used   int
	)

	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if used+rw > cols && used > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()

			used = 0
		}

		cur.WriteRune(r)
		used += rw
	}

	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}

	return chunks
}

// Values writes every cell of the first row on its own line.
func Values(w io.Writer, t *store.Table) error {
	if t.Len() == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)

	for _, v := range t.Rows[0] {
		_, _ = bw.WriteString(v)
		_ = bw.WriteByte('\n')
	}

	return bw.Flush()
}

// Column writes the first cell of every row on its own line.
func Column(w io.Writer, t *store.Table) error {
	if t == nil {
		return nil
	}

	bw := bufio.NewWriter(w)

	for _, row := range t.Rows {
		if len(row) == 0 {
			continue
		}

		_, _ = bw.WriteString(row[0])
		_ = bw.WriteByte('\n')
	}

	return bw.Flush()
}

// Single writes the first cell of the first row followed by a newline.
// errors.Is(err, ErrNoValue) when the result is empty.
func Single(w io.Writer, t *store.Table) error {
	if t.Len() == 0 || len(t.Rows[0]) == 0 {
		return ErrNoValue
	}

	_, err := io.WriteString(w, t.Rows[0][0]+"\n")

	return err
}

// ErrNoValue is returned by Single for an empty result.
var ErrNoValue = errors.New("no value returned")
