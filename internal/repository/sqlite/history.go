package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"github.com/sakif/history-api/internal/apperror"
	"github.com/sakif/history-api/internal/model"
	"github.com/sakif/history-api/internal/repository"
)

const historyColumns = `id, user_id, datetime, value_cents, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (*model.History, error) {
	var (
		h                    model.History
		datetime             string
		cents                int64
		createdAt, updatedAt sql.NullString
	)

	if err := row.Scan(&h.ID, &h.UserID, &datetime, &cents, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if h.Datetime, err = decodeTime(datetime); err != nil {
		return nil, err
	}
	h.Value = fromCents(cents)
	if h.CreatedAt, err = decodeNullTime(createdAt); err != nil {
		return nil, err
	}
	if h.UpdatedAt, err = decodeNullTime(updatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHistories returns one page of a user's histories ordered by datetime.
// Ties are broken by id in the same direction so pages never overlap.
func (db *DB) ListHistories(ctx context.Context, userID string, opts repository.ListOptions) ([]model.History, error) {
	dir := orderSQL(opts.Order)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+historyColumns+`
		 FROM histories
		 WHERE user_id = ?
		 ORDER BY datetime `+dir+`, id `+dir+`
		 LIMIT ? OFFSET ?`,
		userID,
		opts.Limit,
		opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing histories for %s: %w", userID, err)
	}
	defer rows.Close()

	histories := make([]model.History, 0, opts.Limit)
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning history row: %w", err)
		}
		histories = append(histories, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating histories: %w", err)
	}

	return histories, nil
}

// CreateHistory inserts h, filling in its ID and timestamps.
// The owner row must already exist; otherwise the foreign key rejects the
// insert and the error is returned as-is.
func (db *DB) CreateHistory(ctx context.Context, h *model.History) error {
	now := time.Now().UTC()
	h.ID = xid.New().String()
	h.Datetime = h.Datetime.UTC()
	h.Value = h.Value.Round(2)
	h.CreatedAt = &now
	h.UpdatedAt = &now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO histories (`+historyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID,
		h.UserID,
		encodeTime(h.Datetime),
		toCents(h.Value),
		encodeTime(now),
		encodeTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("history", h.ID)
		}
		return fmt.Errorf("sqlite: creating history for %s: %w", h.UserID, err)
	}

	return nil
}

// UpdateHistory applies patch to the history matching BOTH id and userID and
// returns the updated row. updated_at is always refreshed.
//
// RETURNING lets one statement both update and read back, so there is no
// window between the two where a concurrent delete could slip in.
func (db *DB) UpdateHistory(ctx context.Context, id, userID string, patch model.HistoryPatch) (*model.History, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if patch.Datetime != nil {
		sets = append(sets, "datetime = ?")
		args = append(args, encodeTime(*patch.Datetime))
	}
	if patch.Value != nil {
		sets = append(sets, "value_cents = ?")
		args = append(args, toCents(*patch.Value))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, encodeTime(time.Now()), id, userID)

	row := db.conn.QueryRowContext(ctx,
		`UPDATE histories
		 SET `+strings.Join(sets, ", ")+`
		 WHERE id = ? AND user_id = ?
		 RETURNING `+historyColumns,
		args...,
	)

	h, err := scanHistory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("history", id)
		}
		return nil, fmt.Errorf("sqlite: updating history %s: %w", id, err)
	}

	return h, nil
}

// DeleteHistory removes the history matching BOTH id and userID.
func (db *DB) DeleteHistory(ctx context.Context, id, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM histories WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting history %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("history", id)
	}

	return nil
}

// SumHistoryValues totals every history value in the system.
// COALESCE turns the NULL that SUM returns over zero rows into 0.
func (db *DB) SumHistoryValues(ctx context.Context) (decimal.Decimal, error) {
	var cents int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(value_cents), 0) FROM histories`,
	).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sqlite: summing history values: %w", err)
	}
	return fromCents(cents), nil
}
