package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/history-api/internal/apperror"
	"github.com/sakif/history-api/internal/model"
)

// EnsureUser inserts a row for uid unless one already exists.
//
// ON CONFLICT DO NOTHING makes the concurrent case harmless: two first
// requests from the same new user may both get here, and the loser's insert
// simply affects zero rows.
func (db *DB) EnsureUser(ctx context.Context, uid string, email *string) error {
	now := encodeTime(time.Now())

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (uid, email, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(uid) DO NOTHING`,
		uid,
		nullString(email),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: ensuring user %s: %w", uid, err)
	}
	return nil
}

// GetUser retrieves a user by UID.
// Returns apperror.ErrNotFound if no user exists with that UID.
func (db *DB) GetUser(ctx context.Context, uid string) (*model.User, error) {
	var (
		u                    model.User
		email, displayName   sql.NullString
		createdAt, updatedAt sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT uid, email, display_name, created_at, updated_at
		 FROM users WHERE uid = ?`,
		uid,
	).Scan(&u.UID, &email, &displayName, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", uid)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", uid, err)
	}

	u.Email = stringPtr(email)
	u.DisplayName = stringPtr(displayName)
	if u.CreatedAt, err = decodeNullTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = decodeNullTime(updatedAt); err != nil {
		return nil, err
	}

	return &u, nil
}
