// Package picker runs the interactive row selector as a coprocess: rows go
// to its standard input, the chosen row's leading field comes back on its
// standard output.
package picker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultReplySize bounds the single read of the picker's reply.
const DefaultReplySize = 1000

// Errors returned by Spawn and Exchange.
var (
	// ErrSpawn reports a pipe or process start failure. No child is left
	// running and no byte was written.
	ErrSpawn = errors.New("cannot start picker")
	// ErrTimeout reports that the picker did not reply before the deadline.
	ErrTimeout = errors.New("picker timed out")
	// ErrExchange reports an I/O failure on the picker's pipes.
	ErrExchange = errors.New("picker exchange failed")
)

// Options tunes one exchange.
type Options struct {
	// ReplySize is the capacity of the reply read. Defaults to
	// DefaultReplySize.
	ReplySize int
	// Timeout bounds the whole exchange. Zero means no deadline.
	Timeout time.Duration
	// Stderr receives the picker's standard error. Defaults to os.Stderr.
	Stderr io.Writer
	Log    *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ReplySize <= 0 {
		o.ReplySize = DefaultReplySize
	}

	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	return o
}

// Coprocess is a started picker with both of its standard streams piped.
type Coprocess struct {
	// Stdin is the write end of the child's standard input.
	Stdin *os.File
	// Stdout is the read end of the child's standard output.
	Stdout *os.File

	cmd *exec.Cmd
}

// Spawn starts argv with its standard input and output connected to the
// returned handles; standard error goes to stderr. Canceling ctx kills the
// child. On failure every pipe end is closed and ErrSpawn is returned.
func Spawn(ctx context.Context, argv []string, stderr io.Writer) (*Coprocess, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("%w: empty command", ErrSpawn)
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		_ = inR.Close()
		_ = inW.Close()

		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	err = cmd.Start()

	// The child holds its own copies of these ends.
	_ = inR.Close()
	_ = outW.Close()

	if err != nil {
		_ = inW.Close()
		_ = outR.Close()

		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, argv[0], err)
	}

	return &Coprocess{Stdin: inW, Stdout: outR, cmd: cmd}, nil
}

// Pid returns the child's process id.
func (c *Coprocess) Pid() int {
	return c.cmd.Process.Pid
}

// Close closes both pipe ends and waits for the child to exit. The child must
// already be exiting or killed through its context, otherwise Close blocks.
func (c *Coprocess) Close() error {
	_ = c.Stdin.Close()
	_ = c.Stdout.Close()

	return c.cmd.Wait()
}

// Exchange spawns argv, writes the stream produced by payload to its
// standard input, closes it, then does exactly one read of at most
// opts.ReplySize bytes from its standard output and returns the bytes read.
//
// A picker that exits without reading its input is not an error: the broken
// pipe is logged and the read still happens, usually returning no bytes. An
// empty reply means no selection. The child is killed and reaped before
// Exchange returns.
func Exchange(ctx context.Context, argv []string, payload func(io.Writer) error, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	log := opts.Log

	childCtx, kill := context.WithCancel(ctx)
	defer kill()

	cp, err := Spawn(childCtx, argv, opts.Stderr)
	if err != nil {
		return nil, err
	}

	log.Debug("picker started", zap.Strings("argv", argv), zap.Int("pid", cp.Pid()))

	defer func() {
		kill()

		err := cp.Close()
		if err != nil {
			log.Debug("picker exited", zap.Error(err))
		}
	}()

	if opts.Timeout > 0 {
		deadline := time.Now().Add(opts.Timeout)
		_ = cp.Stdin.SetWriteDeadline(deadline)
		_ = cp.Stdout.SetReadDeadline(deadline)
	}

	// Cancellation unblocks a pending write or read.
	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = cp.Stdin.SetWriteDeadline(now)
		_ = cp.Stdout.SetReadDeadline(now)
	})
	defer stop()

	written, err := write(cp.Stdin, payload)
	if err != nil {
		switch {
		case errors.Is(err, syscall.EPIPE):
			log.Debug("picker closed its input early", zap.Int64("written", written))
		case errors.Is(err, os.ErrDeadlineExceeded):
			return nil, deadlineErr(ctx)
		default:
			return nil, fmt.Errorf("%w: write: %w", ErrExchange, err)
		}
	} else {
		log.Debug("payload sent", zap.Int64("bytes", written))
	}

	reply := make([]byte, opts.ReplySize)

	n, err := cp.Stdout.Read(reply)

	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, os.ErrDeadlineExceeded):
		return nil, deadlineErr(ctx)
	case err != nil && !errors.Is(err, io.EOF):
		return nil, fmt.Errorf("%w: read: %w", ErrExchange, err)
	}

	log.Debug("reply read", zap.Int("bytes", n))

	return reply[:n], nil
}

// write runs payload against w and closes w, returning the bytes written.
func write(w *os.File, payload func(io.Writer) error) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriterSize(cw, 64*1024)

	var err error
	if payload != nil {
		err = payload(bw)
	}

	if err == nil {
		err = bw.Flush()
	}

	closeErr := w.Close()
	if err == nil && !errors.Is(closeErr, os.ErrClosed) {
		err = closeErr
	}

	return cw.n, err
}

func deadlineErr(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return ErrTimeout
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}
