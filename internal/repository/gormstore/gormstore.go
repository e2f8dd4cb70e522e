// Package gormstore implements repository.Store with gorm.
//
// Production runs it on PostgreSQL through gorm.io/driver/postgres (see
// OpenPostgres). The store itself only needs a *gorm.DB, so tests hand it an
// in-memory SQLite dialector instead.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sakif/history-api/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store is a gorm-backed repository.Store.
type Store struct {
	db *gorm.DB
}

// New wraps an open *gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// OpenPostgres connects to PostgreSQL and tunes the pool.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: opening postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gormstore: getting sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("gormstore: pinging postgres: %w", err)
	}

	return New(db), nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate runs the schema DDL for the connected dialect. Statements are
// idempotent; there is no migration history table.
func (s *Store) Migrate(ctx context.Context) error {
	stmts, ok := schema[s.db.Dialector.Name()]
	if !ok {
		return fmt.Errorf("gormstore: no schema for dialect %q", s.db.Dialector.Name())
	}

	for _, stmt := range stmts {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("gormstore: running schema: %w", err)
		}
	}
	return nil
}

var schema = map[string][]string{
	"postgres": {
		`CREATE TABLE IF NOT EXISTS users (
			uid          TEXT PRIMARY KEY,
			email        TEXT,
			display_name TEXT,
			created_at   TIMESTAMPTZ DEFAULT now(),
			updated_at   TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS histories (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
			datetime   TIMESTAMPTZ NOT NULL,
			value      NUMERIC(12,2) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now(),
			updated_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_histories_user_id ON histories(user_id)`,
	},
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS users (
			uid          TEXT PRIMARY KEY,
			email        TEXT,
			display_name TEXT,
			created_at   DATETIME,
			updated_at   DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS histories (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
			datetime   DATETIME NOT NULL,
			value      NUMERIC(12,2) NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_histories_user_id ON histories(user_id)`,
	},
}
