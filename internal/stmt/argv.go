package stmt

// Argv is an ordered list of process arguments built from a fixed prefix
// and appended values. The first argument is the program name.
type Argv struct {
	args []string
}

// NewArgv returns an Argv starting with prefix.
func NewArgv(prefix ...string) *Argv {
	return &Argv{args: append([]string(nil), prefix...)}
}

// Append adds values at the end and returns a for chaining.
func (a *Argv) Append(values ...string) *Argv {
	a.args = append(a.args, values...)

	return a
}

// Name returns the program name, or "" if the list is empty.
func (a *Argv) Name() string {
	if len(a.args) == 0 {
		return ""
	}

	return a.args[0]
}

// Len returns the number of arguments including the program name.
func (a *Argv) Len() int { return len(a.args) }

// Args returns a copy of the arguments.
func (a *Argv) Args() []string {
	return append([]string(nil), a.args...)
}
