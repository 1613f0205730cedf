package cli

import (
	"fmt"
	"io"
)

// IO carries a command's standard streams.
type IO struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// NewIO creates a new IO instance.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// In returns standard input.
func (o *IO) In() io.Reader { return o.in }

// Out returns standard output.
func (o *IO) Out() io.Writer { return o.out }

// ErrOut returns standard error.
func (o *IO) ErrOut() io.Writer { return o.errOut }

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// ErrPrintf writes formatted output to stderr.
func (o *IO) ErrPrintf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.errOut, format, a...)
}

// Warn prints a warning to stderr. The command still succeeds.
func (o *IO) Warn(issue string, err error) {
	_, _ = fmt.Fprintf(o.errOut, "warning: %s: %v\n", issue, err)
}
