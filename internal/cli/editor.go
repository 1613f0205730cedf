package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/retrolire/retrolire/internal/config"
	"github.com/retrolire/retrolire/internal/render"
	"github.com/retrolire/retrolire/internal/store"
)

// Errors for editing.
var (
	ErrNoEditorFound = errors.New("no editor found (set editor in config or $EDITOR)")
	ErrNoMatch       = errors.New("no entry matched")
)

// resolveEditor checks for an available editor using the env map.
// Priority: config.Editor -> $EDITOR -> vi -> nano -> error.
// The editor may carry arguments, e.g. "code --wait".
func resolveEditor(cfg config.Config, env map[string]string) ([]string, error) {
	for _, candidate := range []string{cfg.Editor, env["EDITOR"], "vi", "nano"} {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}

		_, lookErr := exec.LookPath(fields[0])
		if lookErr == nil {
			return fields, nil
		}
	}

	return nil, ErrNoEditorFound
}

func (a *app) runEditor(ctx context.Context, o *IO, path string) error {
	editor, err := resolveEditor(a.cfg, a.env)
	if err != nil {
		return err
	}

	a.log.Debug("editor", zap.Strings("argv", editor), zap.String("path", path))

	cmd := exec.CommandContext(ctx, editor[0], append(editor[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Stdio other than files means we are not attached to a terminal.
	if _, ok := o.In().(*os.File); !ok {
		cmd.Stdin = o.In()
		cmd.Stdout = o.Out()
	}

	err = cmd.Run()
	if err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	return nil
}

// editValue loads one value with selectSQL($1 = id), lets the user edit it
// in a temporary file with extension ext, and stores it back with
// updateSQL($1 = id, $2 = content).
func (a *app) editValue(ctx context.Context, o *IO, id, selectSQL, updateSQL, ext string) error {
	t, err := store.QueryOnce(ctx, a.connector, selectSQL, id)
	if err != nil {
		return err
	}

	if t.Len() == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatch, id)
	}

	f, err := a.fs.CreateTemp("", "retrolire.*."+ext)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	path := f.Name()
	defer func() { _ = a.fs.Remove(path) }()

	_, err = io.WriteString(f, t.Value(0, 0))
	if err == nil {
		err = f.Close()
	} else {
		_ = f.Close()
	}

	if err != nil {
		return fmt.Errorf("write temporary file: %w", err)
	}

	err = a.runEditor(ctx, o, path)
	if err != nil {
		return err
	}

	content, err := a.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read temporary file: %w", err)
	}

	n, err := store.ExecOnce(ctx, a.connector, updateSQL, id, string(content))
	if err != nil {
		return err
	}

	a.log.Debug("value updated", zap.String("id", id), zap.Int64("rows", n))

	return nil
}

// printSingle runs sql with params and prints its single value.
func (a *app) printSingle(ctx context.Context, o *IO, sql string, params ...string) error {
	t, err := store.QueryOnce(ctx, a.connector, sql, params...)
	if err != nil {
		return err
	}

	return render.Single(o.Out(), t)
}
