package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Postgres connects to the bibliography database.
type Postgres struct {
	// ConnString is a libpq keyword/value string or a postgres:// URL.
	ConnString string
	Log        *zap.Logger
}

// Connect opens a new connection. The caller must Close it.
func (p Postgres) Connect(ctx context.Context) (Conn, error) {
	if p.ConnString == "" {
		return nil, storeErr("connect", errors.New("connection string is empty"))
	}

	cfg, err := pgx.ParseConfig(p.ConnString)
	if err != nil {
		return nil, storeErr("parse connection string", err)
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, storeErr("connect", err)
	}

	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	log.Debug("connected", zap.String("database", cfg.Database), zap.String("host", cfg.Host))

	return &pgConn{conn: conn, log: log}, nil
}

// QuoteIdentifier quotes name for use as a column or table name.
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

type pgConn struct {
	conn *pgx.Conn
	log  *zap.Logger
}

// args binds params as text literals through the simple protocol, so the
// statement's own casts decide the types and results come back as text.
func args(params []string) []any {
	out := make([]any, 0, len(params)+1)
	out = append(out, pgx.QueryExecModeSimpleProtocol)

	for _, p := range params {
		out = append(out, p)
	}

	return out
}

func (c *pgConn) Query(ctx context.Context, sql string, params ...string) (*Table, error) {
	rows, err := c.conn.Query(ctx, sql, args(params)...)
	if err != nil {
		return nil, storeErr("query", err)
	}

	defer rows.Close()

	fields := rows.FieldDescriptions()
	table := &Table{Columns: make([]string, len(fields))}

	for i, fd := range fields {
		table.Columns[i] = fd.Name
	}

	for rows.Next() {
		raw := rows.RawValues()
		row := make([]string, len(raw))

		for i, v := range raw {
			row[i] = string(v)
		}

		table.Rows = append(table.Rows, row)
	}

	err = rows.Err()
	if err != nil {
		return nil, storeErr("query", err)
	}

	c.log.Debug("query", zap.Int("params", len(params)), zap.Int("rows", len(table.Rows)))

	return table, nil
}

func (c *pgConn) Exec(ctx context.Context, sql string, params ...string) (int64, error) {
	tag, err := c.conn.Exec(ctx, sql, args(params)...)
	if err != nil {
		return 0, storeErr("exec", err)
	}

	c.log.Debug("exec", zap.Int("params", len(params)), zap.Int64("rows", tag.RowsAffected()))

	return tag.RowsAffected(), nil
}

func (c *pgConn) Close(ctx context.Context) error {
	err := c.conn.Close(ctx)
	if err != nil {
		return storeErr("close", err)
	}

	c.log.Debug("connection closed")

	return nil
}
