package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

// confirm asks a yes/no question. On a terminal the line editor is used;
// otherwise one line is read from the command's stdin. Anything but y or yes
// is a no.
func confirm(o *IO, question string) (bool, error) {
	if f, ok := o.In().(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return confirmTTY(question)
	}

	o.ErrPrintf("%s", question)

	if o.In() == nil {
		return false, nil
	}

	answer, err := bufio.NewReader(o.In()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}

	return isYes(answer), nil
}

func confirmTTY(question string) (bool, error) {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)

	answer, err := line.Prompt(question)
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("read answer: %w", err)
	}

	return isYes(answer), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
