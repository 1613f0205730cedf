// Package store defines the narrow query contract the commands need and its
// implementations: PostgreSQL through pgx for the bibliography, and any
// database/sql driver for local data such as the pick history.
//
// Every value comes back as text. A NULL cell reads as the empty string and
// cannot be told apart from an actual empty string.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrStore wraps every failure reported by a database: connection, query or
// statement errors. The driver's message is kept in the chain.
var ErrStore = errors.New("store error")

// Table is a tabular query result: rows of text cells under named columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}

	return len(t.Rows)
}

// Value returns the cell at row, col, or "" when out of range.
func (t *Table) Value(row, col int) string {
	if t == nil || row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}

	return t.Rows[row][col]
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	if t == nil {
		return -1
	}

	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}

	return -1
}

// Conn is one open database connection.
//
// params bind in order to the statement's placeholders, whose syntax is the
// driver's: $1, $2 for PostgreSQL, ? for SQLite.
type Conn interface {
	// Query runs a statement returning rows.
	Query(ctx context.Context, sql string, params ...string) (*Table, error)
	// Exec runs a statement and returns the number of rows affected.
	Exec(ctx context.Context, sql string, params ...string) (int64, error)
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Connector opens connections. Callers own the returned Conn and must close
// it; connections are never reused implicitly.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Conn, error)

// Connect calls f(ctx).
func (f ConnectorFunc) Connect(ctx context.Context) (Conn, error) { return f(ctx) }

// QueryOnce opens a connection, runs one query and closes the connection
// before returning.
func QueryOnce(ctx context.Context, c Connector, sql string, params ...string) (*Table, error) {
	conn, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}

	table, err := conn.Query(ctx, sql, params...)

	closeErr := conn.Close(ctx)
	if err != nil {
		return nil, err
	}

	if closeErr != nil {
		return nil, closeErr
	}

	return table, nil
}

// ExecOnce opens a connection, runs one statement and closes the connection.
func ExecOnce(ctx context.Context, c Connector, sql string, params ...string) (int64, error) {
	conn, err := c.Connect(ctx)
	if err != nil {
		return 0, err
	}

	n, err := conn.Exec(ctx, sql, params...)

	closeErr := conn.Close(ctx)
	if err != nil {
		return 0, err
	}

	if closeErr != nil {
		return 0, closeErr
	}

	return n, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
