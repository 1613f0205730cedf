package cli

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/retrolire/retrolire/internal/config"
	"github.com/retrolire/retrolire/internal/fs"
	"github.com/retrolire/retrolire/internal/history"
	"github.com/retrolire/retrolire/internal/picker"
	"github.com/retrolire/retrolire/internal/query"
	"github.com/retrolire/retrolire/internal/store"
)

// clauseLimit bounds the filter text, leaving room for the base statement
// within query.DefaultStatementLimit.
const clauseLimit = 768

// Picker hands rows or plain values to the interactive selector.
type Picker interface {
	query.Picker
	PickLines(ctx context.Context, argv []string, values []string) ([]byte, error)
}

// deps are the external collaborators of the commands. Zero fields are
// replaced by the real implementations built from the configuration.
type deps struct {
	connector store.Connector
	picker    Picker
	fs        fs.FS
}

// app is what every command closes over.
type app struct {
	cfg       config.Config
	env       map[string]string
	log       *zap.Logger
	self      string
	connector store.Connector
	picker    Picker
	fs        fs.FS
}

func newApp(cfg config.Config, env map[string]string, log *zap.Logger, self string, d deps) *app {
	a := &app{
		cfg:       cfg,
		env:       env,
		log:       log,
		self:      self,
		connector: d.connector,
		picker:    d.picker,
		fs:        d.fs,
	}

	if a.fs == nil {
		a.fs = fs.NewReal()
	}

	if a.connector == nil {
		a.connector = store.Postgres{ConnString: cfg.Connection, Log: log.Named("store")}
	}

	if a.picker == nil {
		a.picker = &picker.Process{Options: picker.Options{
			Timeout: cfg.Timeout,
			Log:     log.Named("picker"),
		}}
	}

	return a
}

func (a *app) orchestrator(out io.Writer) *query.Orchestrator {
	return &query.Orchestrator{
		Connector:      a.connector,
		Picker:         a.picker,
		Out:            out,
		Log:            a.log.Named("query"),
		StatementLimit: query.DefaultStatementLimit,
	}
}

// openHistory opens the pick history. It returns nil when the history is
// disabled or cannot be opened; the failure is only logged.
func (a *app) openHistory(ctx context.Context) *history.Store {
	path := a.cfg.HistoryPath()
	if path == "" {
		return nil
	}

	h, err := history.Open(ctx, path)
	if err != nil {
		a.log.Warn("history unavailable", zap.String("path", path), zap.Error(err))

		return nil
	}

	return h
}

// recordPick stores a pick in the history. Failures are warnings.
func (a *app) recordPick(ctx context.Context, o *IO, entry, command string) {
	h := a.openHistory(ctx)
	if h == nil {
		return
	}

	defer func() { _ = h.Close() }()

	p, err := h.Record(ctx, entry, command)
	if err != nil {
		o.Warn("cannot record pick in history", err)

		return
	}

	a.log.Debug("pick recorded", zap.String("entry", entry), zap.Stringer("id", p.ID))
}

// commands returns every command in usage order.
func (a *app) commands() []*Command {
	return []*Command{
		a.editCmd(),
		a.citeCmd(),
		a.printCmd(),
		a.listCmd(),
		a.jsonCmd(),
		a.openCmd(),
		a.fileCmd(),
		a.updateCmd(),
		a.tagCmd(),
		a.quoteCmd(),
		a.referCmd(),
		a.deleteCmd(),
		a.addCmd(),
		a.historyCmd(),
		a.printConfigCmd(),
		a.previewCmd(),
		a.headCmd(),
		a.listTagsCmd(),
		a.listFieldsCmd(),
		a.cacheCmd(),
	}
}
