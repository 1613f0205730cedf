// Package history records the entries picked by selecting commands in a
// local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/retrolire/retrolire/internal/store"
)

const schemaVersion = 1

// ErrEmpty is returned by Last when nothing was picked yet.
var ErrEmpty = errors.New("history is empty")

// Pick is one recorded pick.
type Pick struct {
	ID       uuid.UUID
	Entry    string
	Command  string
	PickedAt time.Time
}

// Store is the pick history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the history database at path, creating it when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := store.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	err = migrate(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("open history: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	version, err := store.UserVersion(ctx, db)
	if err != nil {
		return err
	}

	if version == schemaVersion {
		return nil
	}

	if version > schemaVersion {
		return fmt.Errorf("history schema version %d is newer than supported %d", version, schemaVersion)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS picks (
			id TEXT PRIMARY KEY,
			entry TEXT NOT NULL,
			command TEXT NOT NULL,
			picked_at INTEGER NOT NULL
		) WITHOUT ROWID`,
		"CREATE INDEX IF NOT EXISTS idx_picks_entry ON picks(entry, picked_at)",
		fmt.Sprintf("PRAGMA user_version = %d", schemaVersion),
	}

	for _, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply schema statement %q: %w", stmt, err)
		}
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Connector exposes the history database to the query machinery.
func (s *Store) Connector() store.Connector {
	return store.SQL{DB: s.db}
}

// Record stores a pick of entry by command.
func (s *Store) Record(ctx context.Context, entry, command string) (Pick, error) {
	if entry == "" {
		return Pick{}, errors.New("record pick: entry is empty")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Pick{}, fmt.Errorf("record pick: %w", err)
	}

	p := Pick{ID: id, Entry: entry, Command: command, PickedAt: s.now()}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO picks (id, entry, command, picked_at) VALUES (?, ?, ?, ?)",
		p.ID.String(), p.Entry, p.Command, p.PickedAt.UnixMilli(),
	)
	if err != nil {
		return Pick{}, fmt.Errorf("record pick: %w", err)
	}

	return p, nil
}

// RecentStatement selects the distinct entries picked most recently, newest
// first, as (entry, command, picked) rows. picked is in Unix milliseconds and
// command is the one of the latest pick.
func RecentStatement(limit int) string {
	if limit <= 0 {
		limit = 20
	}

	return "SELECT entry, command, max(picked_at) AS picked\n" +
		"FROM picks GROUP BY entry ORDER BY max(picked_at) DESC, max(id) DESC LIMIT " + strconv.Itoa(limit)
}

// Recent returns the distinct entries picked most recently.
func (s *Store) Recent(ctx context.Context, limit int) (*store.Table, error) {
	return store.QueryOnce(ctx, s.Connector(), RecentStatement(limit))
}

// Last returns the most recent pick.
func (s *Store) Last(ctx context.Context) (Pick, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, entry, command, picked_at FROM picks ORDER BY picked_at DESC, id DESC LIMIT 1")

	var (
		rawID    string
		p        Pick
		pickedAt int64
	)

	err := row.Scan(&rawID, &p.Entry, &p.Command, &pickedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Pick{}, ErrEmpty
	}

	if err != nil {
		return Pick{}, fmt.Errorf("last pick: %w", err)
	}

	p.ID, err = uuid.Parse(rawID)
	if err != nil {
		return Pick{}, fmt.Errorf("last pick: %w", err)
	}

	p.PickedAt = time.UnixMilli(pickedAt)

	return p, nil
}
