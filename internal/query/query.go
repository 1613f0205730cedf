// Package query runs one filtered query and hands its rows either to the
// interactive picker or to an output stream.
package query

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/retrolire/retrolire/internal/picker"
	"github.com/retrolire/retrolire/internal/stmt"
	"github.com/retrolire/retrolire/internal/store"
)

// DefaultStatementLimit bounds the assembled statement text.
const DefaultStatementLimit = 1024

// ErrNoSelection reports that there is nothing to act on: no row matched, or
// the picker returned an empty reply. It is not a failure.
var ErrNoSelection = errors.New("no selection")

// State is the stage an Orchestrator run ended in.
type State int

// States of a run. Failed, Picked and Printed are terminal.
const (
	StateBuilding State = iota
	StateExecuted
	StateFailed
	StatePicked
	StatePrinted
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateExecuted:
		return "executed"
	case StateFailed:
		return "failed"
	case StatePicked:
		return "picked"
	case StatePrinted:
		return "printed"
	default:
		return "unknown"
	}
}

// Picker hands rows to an interactive selector and returns its raw reply.
type Picker interface {
	Pick(ctx context.Context, argv []string, t *store.Table) ([]byte, error)
}

// Request describes one run.
type Request struct {
	// Base is the statement the filter clause is appended to.
	Base   string
	Filter *stmt.Filter
	// Interactive sends the rows to the picker; otherwise they are written
	// to the output stream.
	Interactive bool
	// Argv is the picker command line. Required when Interactive.
	Argv *stmt.Argv
}

// Result is the outcome of a run.
type Result struct {
	State     State
	Selected  string
	Statement string
	Rows      int
}

// Orchestrator composes statement assembly, execution and the pick.
type Orchestrator struct {
	Connector store.Connector
	Picker    Picker
	// Out receives the rows on the non-interactive path.
	Out io.Writer
	Log *zap.Logger
	// StatementLimit bounds the assembled statement. Defaults to
	// DefaultStatementLimit.
	StatementLimit int
}

// Run assembles the statement, executes it and dispatches the rows.
//
// The store connection is closed before the picker is started. A zero row
// result ends in StateFailed with ErrNoSelection, without touching the picker
// or the output stream.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{State: StateBuilding}

	limit := o.StatementLimit
	if limit <= 0 {
		limit = DefaultStatementLimit
	}

	statement, err := stmt.Assemble(req.Base, req.Filter, limit)
	if err != nil {
		return o.transition(res, StateFailed), err
	}

	res.Statement = statement

	var params []string
	if req.Filter != nil {
		params = req.Filter.Bound()
	}

	o.log().Debug("statement assembled",
		zap.String("statement", statement),
		zap.Int("params", len(params)),
	)

	table, err := store.QueryOnce(ctx, o.Connector, statement, params...)
	if err != nil {
		return o.transition(res, StateFailed), err
	}

	res.Rows = table.Len()

	if res.Rows == 0 {
		return o.transition(res, StateFailed), ErrNoSelection
	}

	res = o.transition(res, StateExecuted)

	if !req.Interactive {
		err = picker.Encode(o.Out, table, picker.FieldSep, picker.RecordSep)
		if err != nil {
			return o.transition(res, StateFailed), err
		}

		return o.transition(res, StatePrinted), nil
	}

	if req.Argv == nil || req.Argv.Len() == 0 {
		return o.transition(res, StateFailed), errors.New("picker command is empty")
	}

	reply, err := o.Picker.Pick(ctx, req.Argv.Args(), table)
	if err != nil {
		return o.transition(res, StateFailed), err
	}

	res.Selected = strings.TrimSuffix(string(reply), "\n")
	res = o.transition(res, StatePicked)

	if res.Selected == "" {
		return res, ErrNoSelection
	}

	return res, nil
}

func (o *Orchestrator) transition(res Result, to State) Result {
	o.log().Debug("query state", zap.Stringer("from", res.State), zap.Stringer("to", to))
	res.State = to

	return res
}

func (o *Orchestrator) log() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}

	return o.Log
}
