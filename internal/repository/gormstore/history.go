package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/history-api/internal/apperror"
	"github.com/sakif/history-api/internal/model"
	"github.com/sakif/history-api/internal/repository"
)

// ListHistories returns one page of a user's histories ordered by datetime,
// ties broken by id in the same direction.
func (s *Store) ListHistories(ctx context.Context, userID string, opts repository.ListOptions) ([]model.History, error) {
	desc := opts.Order != repository.OrderAsc

	histories := make([]model.History, 0, opts.Limit)
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "datetime"}, Desc: desc},
			{Column: clause.Column{Name: "id"}, Desc: desc},
		}}).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&histories).Error
	if err != nil {
		return nil, fmt.Errorf("gormstore: listing histories for %s: %w", userID, err)
	}
	if histories == nil {
		histories = []model.History{}
	}
	return histories, nil
}

// CreateHistory inserts h, filling in its ID and timestamps.
func (s *Store) CreateHistory(ctx context.Context, h *model.History) error {
	now := time.Now().UTC()
	h.ID = xid.New().String()
	h.Datetime = h.Datetime.UTC()
	h.Value = h.Value.Round(2)
	h.CreatedAt = &now
	h.UpdatedAt = &now

	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.Conflict("history", h.ID)
		}
		return fmt.Errorf("gormstore: creating history for %s: %w", h.UserID, err)
	}
	return nil
}

// UpdateHistory applies patch to the history matching BOTH id and userID and
// returns the row as stored. The update and read-back share a transaction.
func (s *Store) UpdateHistory(ctx context.Context, id, userID string, patch model.HistoryPatch) (*model.History, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Datetime != nil {
		updates["datetime"] = patch.Datetime.UTC()
	}
	if patch.Value != nil {
		updates["value"] = patch.Value.Round(2)
	}

	var h model.History
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.History{}).
			Where("id = ? AND user_id = ?", id, userID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("history", id)
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Take(&h).Error
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("gormstore: updating history %s: %w", id, err)
	}
	return &h, nil
}

// DeleteHistory removes the history matching BOTH id and userID.
func (s *Store) DeleteHistory(ctx context.Context, id, userID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.History{})
	if res.Error != nil {
		return fmt.Errorf("gormstore: deleting history %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("history", id)
	}
	return nil
}

// SumHistoryValues totals every history value; zero rows sum to 0.
func (s *Store) SumHistoryValues(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.WithContext(ctx).
		Model(&model.History{}).
		Select("COALESCE(SUM(value), 0)").
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("gormstore: summing history values: %w", err)
	}
	return total, nil
}
