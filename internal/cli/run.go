package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/retrolire/retrolire/internal/config"
	"github.com/retrolire/retrolire/internal/logging"
)

const (
	consumedNone = 0
	consumedOne  = 1
	consumedTwo  = 2
	helpFlag     = "--help"
)

// Errors for global argument handling.
var (
	ErrUnknownFlag      = errors.New("unknown flag")
	ErrFlagRequiresArg  = errors.New("flag requires an argument")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrBadDefaultCmd    = errors.New("default_command does not name a command")
	ErrArgumentRequired = errors.New("missing argument")
)

// Run is the main entry point. Returns exit code.
// sigCh may be nil; a signal received on it cancels the running command.
func Run(stdin io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	return run(deps{}, stdin, out, errOut, args, env, sigCh)
}

func run(d deps, stdin io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	self := "retrolire"
	if len(args) > 0 {
		self = args[0]
		args = args[1:]
	}

	flags, err := parseGlobalFlags(args)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		ConfigPath:         flags.configPath,
		ConnectionOverride: flags.connection,
		Env:                env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	level := cfg.LogLevel
	if flags.verbose {
		level = "debug"
	}

	if flags.logLevel != "" {
		level = flags.logLevel
	}

	log, err := logging.New(level, errOut)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	defer func() { _ = log.Sync() }()

	a := newApp(cfg, env, log, self, d)
	commands := a.commands()

	registry := make(map[string]*Command, len(commands))
	for _, c := range commands {
		registry[c.Name()] = c
	}

	if flags.help {
		printUsage(out, commands)

		return 0
	}

	rest := flags.remaining

	name := cfg.DefaultCommand
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		name = rest[0]
		rest = rest[1:]
	}

	cmd, ok := registry[name]
	if !ok {
		if len(flags.remaining) == 0 || strings.HasPrefix(flags.remaining[0], "-") {
			fprintln(errOut, "error:", fmt.Errorf("%w: %q", ErrBadDefaultCmd, name))
		} else {
			fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
		}

		printUsage(errOut, commands)

		return 1
	}

	log.Debug("dispatch", zap.String("command", name), zap.Strings("args", rest))

	return cmd.Run(ctx, NewIO(stdin, out, errOut), log, rest)
}

type globalFlags struct {
	configPath string
	connection string
	logLevel   string
	verbose    bool
	help       bool
	remaining  []string
}

// parseGlobalFlags consumes leading global flags. It stops at the first
// argument that is not one, which is the command or a command flag.
func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == consumedNone {
			break
		}

		idx += consumed
	}

	flags.remaining = args[idx:]

	return flags, nil
}

// parseFlag tries to parse a global flag at args[idx]. Returns number of args
// consumed (0 if not a global flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	for _, opt := range []struct {
		name string
		dst  *string
	}{
		{"--config", &flags.configPath},
		{"--connection", &flags.connection},
		{"--log-level", &flags.logLevel},
	} {
		if arg == opt.name {
			if idx+1 >= len(args) {
				return consumedNone, fmt.Errorf("%w: %s", ErrFlagRequiresArg, arg)
			}

			*opt.dst = args[idx+1]

			return consumedTwo, nil
		}

		if after, ok := strings.CutPrefix(arg, opt.name+"="); ok {
			*opt.dst = after

			return consumedOne, nil
		}
	}

	switch arg {
	case "-V", "--verbose":
		flags.verbose = true

		return consumedOne, nil
	case "-h", helpFlag:
		flags.help = true

		return len(args) - idx, nil
	}

	// Not a global flag
	return consumedNone, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, `retrolire - browse and edit a PostgreSQL bibliography

Usage: retrolire [options] [command] [filters] [args]

Options:
  --config FILE        Use specified config file
  --connection STR     Database connection string
  --log-level LEVEL    debug, info, warn or error
  -V, --verbose        Same as --log-level debug
  -h, --help           Show this help

Filters (most commands):
  -v, --var FIELD.REGEX   Field matches the regex (case insensitive)
  -t, --tag TAG           Entry has the tag
  -s, --search REGEX      Notes match the regex
  -q, --quote REGEX       A quote matches the regex
  -c, --concept REGEX     A concept matches the regex
  -i, --id ID             Entry id
  -r, --recent            Most recently edited first
  -l, --last              Only the most recently edited entry

Commands:`)

	visible := make([]*Command, 0, len(commands))
	for _, c := range commands {
		if !c.Hidden {
			visible = append(visible, c)
		}
	}

	for _, c := range visible {
		fprintln(w, c.HelpLine())
	}
}
