package store

import (
	"context"
	"database/sql"
	"errors"
)

// SQL adapts a database/sql handle. Each Connect checks out a dedicated
// *sql.Conn from the pool; Close returns it.
type SQL struct {
	DB *sql.DB
}

// Connect checks out one connection.
func (s SQL) Connect(ctx context.Context) (Conn, error) {
	if s.DB == nil {
		return nil, storeErr("connect", errors.New("database is not open"))
	}

	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return nil, storeErr("connect", err)
	}

	return &sqlConn{conn: conn}, nil
}

type sqlConn struct {
	conn *sql.Conn
}

func anyParams(params []string) []any {
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = p
	}

	return out
}

func (c *sqlConn) Query(ctx context.Context, query string, params ...string) (*Table, error) {
	rows, err := c.conn.QueryContext(ctx, query, anyParams(params)...)
	if err != nil {
		return nil, storeErr("query", err)
	}

	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, storeErr("query", err)
	}

	table := &Table{Columns: cols}
	cells := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))

	for i := range cells {
		dest[i] = &cells[i]
	}

	for rows.Next() {
		err = rows.Scan(dest...)
		if err != nil {
			return nil, storeErr("scan", err)
		}

		row := make([]string, len(cols))
		for i, cell := range cells {
			row[i] = cell.String
		}

		table.Rows = append(table.Rows, row)
	}

	err = rows.Err()
	if err != nil {
		return nil, storeErr("query", err)
	}

	return table, nil
}

func (c *sqlConn) Exec(ctx context.Context, query string, params ...string) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, anyParams(params)...)
	if err != nil {
		return 0, storeErr("exec", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("exec", err)
	}

	return n, nil
}

func (c *sqlConn) Close(_ context.Context) error {
	err := c.conn.Close()
	if err != nil {
		return storeErr("close", err)
	}

	return nil
}
