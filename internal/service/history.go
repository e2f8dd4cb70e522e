// Package service holds the business rules between HTTP handlers and the
// repositories: ownership checks, pagination parsing and field validation.
//
// Services take repository interfaces and return apperror values; they know
// nothing about HTTP.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/sakif/history-api/internal/apperror"
	"github.com/sakif/history-api/internal/auth"
	"github.com/sakif/history-api/internal/model"
	"github.com/sakif/history-api/internal/repository"
)

const msgNotAuthorized = "not authorized to access this user's data"

// authorize allows the owner and site admins.
func authorize(p *auth.Principal, ownerID string) error {
	if !p.CanAccess(ownerID) {
		return apperror.Forbidden(msgNotAuthorized)
	}
	return nil
}

// HistoryService handles the per-user history records.
type HistoryService struct {
	repo   repository.HistoryRepository
	logger *slog.Logger
}

func NewHistoryService(repo repository.HistoryRepository, logger *slog.Logger) *HistoryService {
	return &HistoryService{repo: repo, logger: logger}
}

// List returns ownerID's records in the order and window given by opts.
func (s *HistoryService) List(ctx context.Context, p *auth.Principal, ownerID string, opts repository.ListOptions) ([]model.History, error) {
	if err := authorize(p, ownerID); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListHistories(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("listing histories: %w", err)
	}
	return rows, nil
}

// Create validates fields and inserts a record owned by ownerID.
//
// Both datetime and value must be present and non-null; an empty datetime
// string also counts as missing. Unknown keys are ignored.
func (s *HistoryService) Create(ctx context.Context, p *auth.Principal, ownerID string, fields Fields) (*model.History, error) {
	if err := authorize(p, ownerID); err != nil {
		return nil, err
	}

	if fields.missing(fieldDatetime) || fields.missing(fieldValue) || isEmptyString(fields[fieldDatetime]) {
		return nil, apperror.ValidationFailed("", msgRequired)
	}
	value, err := parseValue(fields[fieldValue])
	if err != nil {
		return nil, err
	}
	datetime, err := parseDatetime(fields[fieldDatetime])
	if err != nil {
		return nil, err
	}

	h := &model.History{
		UserID:   ownerID,
		Datetime: datetime,
		Value:    value,
	}
	if err := s.repo.CreateHistory(ctx, h); err != nil {
		s.logger.Error("failed to create history",
			slog.String("user_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating history: %w", err)
	}

	s.logger.Info("history created",
		slog.String("id", h.ID),
		slog.String("user_id", ownerID),
	)
	return h, nil
}

// Update applies the recognised fields present in fields to the record id
// owned by ownerID. A present key is validated even when null.
func (s *HistoryService) Update(ctx context.Context, p *auth.Principal, ownerID, id string, fields Fields) (*model.History, error) {
	if err := authorize(p, ownerID); err != nil {
		return nil, err
	}

	var patch model.HistoryPatch
	if raw, ok := fields[fieldValue]; ok {
		v, err := parseValue(raw)
		if err != nil {
			return nil, err
		}
		patch.Value = &v
	}
	if raw, ok := fields[fieldDatetime]; ok {
		t, err := parseDatetime(raw)
		if err != nil {
			return nil, err
		}
		patch.Datetime = &t
	}
	if patch.Empty() {
		return nil, apperror.ValidationFailed("", msgNoFields)
	}

	h, err := s.repo.UpdateHistory(ctx, id, ownerID, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("history updated",
		slog.String("id", id),
		slog.String("user_id", ownerID),
	)
	return h, nil
}

// Delete removes the record id owned by ownerID.
func (s *HistoryService) Delete(ctx context.Context, p *auth.Principal, ownerID, id string) error {
	if err := authorize(p, ownerID); err != nil {
		return err
	}

	if err := s.repo.DeleteHistory(ctx, id, ownerID); err != nil {
		return err
	}

	s.logger.Info("history deleted",
		slog.String("id", id),
		slog.String("user_id", ownerID),
	)
	return nil
}

// Total sums every record's value across all users. Public.
func (s *HistoryService) Total(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.repo.SumHistoryValues(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing histories: %w", err)
	}
	return total, nil
}
