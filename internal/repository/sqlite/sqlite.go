// Package sqlite implements the repository interfaces on an embedded SQLite
// database. It is the local and test backend; production talks to the
// managed Postgres through the postgres package.
//
// Standalone milestone attributes live in dedicated columns here, where the
// postgres schema folds them into a JSON metadata column. Both produce the
// same model.Milestone values.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain is
// needed to build or cross-compile.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sakif/keepsake/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// timeLayout is fixed width so that ORDER BY on the text column sorts
// chronologically. Values are always written in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/keepsake.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a separate empty database, and
	// SQLite serialises writers anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate creates or upgrades the schema. It is idempotent.
//
// milestones.memory_id is a weak reference: no foreign key, because a
// milestone may outlive the memory it points at and readers drop such rows.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS media_files (
			id            TEXT PRIMARY KEY,
			secure_url    TEXT NOT NULL,
			resource_type TEXT NOT NULL DEFAULT 'image'
		);

		CREATE TABLE IF NOT EXISTS memories (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			media_id      TEXT REFERENCES media_files(id) ON DELETE SET NULL,
			location_name TEXT,
			location_lat  REAL,
			location_lng  REAL,
			is_milestone  INTEGER NOT NULL DEFAULT 0,
			is_public     INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating memories table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS milestones (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			memory_id        TEXT,
			celebration_date TEXT NOT NULL,
			reminder_enabled INTEGER NOT NULL DEFAULT 0,
			title            TEXT,
			description      TEXT,
			type             TEXT,
			target_date      TEXT,
			target_count     INTEGER,
			reminder_days    INTEGER,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL,
			CHECK (memory_id IS NOT NULL OR (title IS NOT NULL AND title <> ''))
		);
		CREATE INDEX IF NOT EXISTS idx_milestones_user_date ON milestones(user_id, celebration_date);
	`)
	if err != nil {
		return fmt.Errorf("creating milestones table: %w", err)
	}

	// Files created before standalone milestones existed only have the
	// memory-linked shape (and no CHECK).
	standalone := []struct{ column, definition string }{
		{"title", "TEXT"},
		{"description", "TEXT"},
		{"type", "TEXT"},
		{"target_date", "TEXT"},
		{"target_count", "INTEGER"},
		{"reminder_days", "INTEGER"},
	}
	for _, c := range standalone {
		if err := db.addColumnIfNotExists(ctx, "milestones", c.column, c.definition); err != nil {
			return fmt.Errorf("adding %s to milestones: %w", c.column, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// SQLite has no ADD COLUMN IF NOT EXISTS.
func (db *DB) addColumnIfNotExists(ctx context.Context, table, column, definition string) error {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.ExecContext(ctx, fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored timestamp. Unreadable text yields the zero time;
// callers treat that as "no date" rather than failing a whole listing.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
