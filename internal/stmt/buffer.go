// Package stmt assembles parameterized SQL statements and process argument
// lists for the retrolire commands.
//
// A [Buffer] is an append-only text buffer with an optional capacity limit.
// When an append would exceed the limit, the buffer is poisoned: the failing
// append leaves no bytes behind and every later append fails immediately.
// A [Filter] builds one WHERE/AND expression and its positional parameter
// list on top of a Buffer. An [Argv] collects the arguments of the picker
// process.
package stmt

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by Buffer.
var (
	// ErrCapacityExceeded reports that an append did not fit in the buffer.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrPoisoned reports an append on a buffer that already overflowed.
	// It matches ErrCapacityExceeded with errors.Is.
	ErrPoisoned = fmt.Errorf("%w: buffer is poisoned", ErrCapacityExceeded)
)

// Buffer is an append-only text buffer.
//
// A Buffer with a positive limit accepts an append of n bytes only while
// n < Remaining(). A Buffer with limit <= 0 grows on demand and never
// overflows. The zero value is an unbounded, empty buffer.
type Buffer struct {
	limit    int
	sb       strings.Builder
	poisoned bool
}

// NewBuffer returns an empty buffer holding at most limit bytes.
func NewBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

// Append appends s. It fails with [ErrCapacityExceeded] and poisons the
// buffer if s does not fit, and with [ErrPoisoned] once the buffer is
// poisoned. A failed append writes nothing.
func (b *Buffer) Append(s string) error {
	if b.poisoned {
		return ErrPoisoned
	}

	if b.limit > 0 && len(s) >= b.limit-b.sb.Len() {
		b.poisoned = true

		return fmt.Errorf("%w: %d bytes, %d remaining", ErrCapacityExceeded, len(s), b.Remaining())
	}

	b.sb.WriteString(s)

	return nil
}

// Appendf formats according to a format specifier and appends the result.
func (b *Buffer) Appendf(format string, a ...any) error {
	return b.Append(fmt.Sprintf(format, a...))
}

// Remaining returns the number of bytes left before the limit. Unbounded
// buffers report -1.
func (b *Buffer) Remaining() int {
	if b.limit <= 0 {
		return -1
	}

	return b.limit - b.sb.Len()
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return b.sb.Len() }

// Poisoned reports whether an append has overflowed the buffer.
func (b *Buffer) Poisoned() bool { return b.poisoned }

// String returns the accumulated text.
func (b *Buffer) String() string { return b.sb.String() }
