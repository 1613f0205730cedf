package picker

import (
	"bufio"
	"io"

	"github.com/retrolire/retrolire/internal/store"
)

// Framing of the stream sent to the picker.
const (
	// FieldSep separates the cells of a row.
	FieldSep = "\n\t"
	// RecordSep follows the last cell of every row (fzf --read0).
	RecordSep byte = 0
)

// Encode writes t to w: the cells of a row joined by fieldSep, each row
// followed by recordSep. Nothing is written after the last record separator.
//
// Cells are not escaped. A cell containing recordSep breaks the framing, and
// a NULL cell is sent as an empty string.
func Encode(w io.Writer, t *store.Table, fieldSep string, recordSep byte) error {
	if t == nil {
		return nil
	}

	bw := bufio.NewWriterSize(w, 64*1024)

	for _, row := range t.Rows {
		for i, cell := range row {
			_, _ = bw.WriteString(cell)

			if i < len(row)-1 {
				_, _ = bw.WriteString(fieldSep)
			}
		}

		_ = bw.WriteByte(recordSep)
	}

	return bw.Flush()
}

// EncodeLines writes one value per line. Used for pickers fed plain lists.
func EncodeLines(w io.Writer, values []string) error {
	bw := bufio.NewWriter(w)

	for _, v := range values {
		_, _ = bw.WriteString(v)
		_ = bw.WriteByte('\n')
	}

	return bw.Flush()
}
