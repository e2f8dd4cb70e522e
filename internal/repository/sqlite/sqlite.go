// Package sqlite implements repository.Store on SQLite.
//
// The driver is modernc.org/sqlite, a pure Go SQLite, registered as "sqlite".
//
// STORAGE FORMAT:
// SQLite has no real timestamp or decimal types, so this package picks its
// own encodings and sticks to them:
//   - instants are TEXT in a fixed-width UTC layout (see timeLayout), which
//     makes lexical ORDER BY equal to chronological order
//   - history values are INTEGER cents, which makes SUM() exact
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/history-api/internal/repository"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath. It does NOT create the schema; call
// Migrate for that.
//
// dbPath examples:
//   - "data/history.db" → file-based database
//   - ":memory:"        → in-memory database, used by tests
func New(ctx context.Context, dbPath string) (*DB, error) {
	memory := dbPath == ":memory:"

	dsn := dbPath
	if !memory {
		// _pragma is applied by the driver to EVERY pooled connection.
		// A plain "PRAGMA foreign_keys=ON" Exec would only reach one of them.
		dsn = "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if memory {
		// Each connection to ":memory:" is a separate empty database, so the
		// pool must never grow past one.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if memory {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
		}
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate creates the schema. There is no migration history: every
// statement is idempotent and runs on each startup.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			uid          TEXT PRIMARY KEY,
			email        TEXT,
			display_name TEXT,
			created_at   TEXT,
			updated_at   TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("sqlite: creating users table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS histories (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
			datetime    TEXT NOT NULL,
			value_cents INTEGER NOT NULL,
			created_at  TEXT,
			updated_at  TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_histories_user_id ON histories(user_id);
	`)
	if err != nil {
		return fmt.Errorf("sqlite: creating histories table: %w", err)
	}

	return nil
}

// orderSQL maps a validated direction to SQL. Anything that is not exactly
// ascending sorts descending, so user input never reaches the query text.
func orderSQL(o repository.Order) string {
	if o == repository.OrderAsc {
		return "ASC"
	}
	return "DESC"
}

// isUniqueViolation reports whether err is a PRIMARY KEY / UNIQUE conflict.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
