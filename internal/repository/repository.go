// Package repository declares the storage contracts the service layer
// depends on. Implementations live in the sqlite and gormstore subpackages.
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sakif/history-api/internal/model"
)

// Order is the sort direction of a history listing.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ListOptions are already-normalised pagination settings; repositories use
// them as given.
type ListOptions struct {
	Limit  int
	Offset int
	Order  Order
}

type UserRepository interface {
	// EnsureUser inserts the user if no row exists for uid. An existing row,
	// including one inserted concurrently, is not an error.
	EnsureUser(ctx context.Context, uid string, email *string) error
	GetUser(ctx context.Context, uid string) (*model.User, error)
}

type HistoryRepository interface {
	ListHistories(ctx context.Context, userID string, opts ListOptions) ([]model.History, error)
	CreateHistory(ctx context.Context, h *model.History) error
	// UpdateHistory and DeleteHistory match on BOTH id and userID and return
	// apperror.ErrNotFound when nothing matched.
	UpdateHistory(ctx context.Context, id, userID string, patch model.HistoryPatch) (*model.History, error)
	DeleteHistory(ctx context.Context, id, userID string) error
	SumHistoryValues(ctx context.Context) (decimal.Decimal, error)
}

// Store is everything a storage backend provides.
type Store interface {
	UserRepository
	HistoryRepository

	// Migrate creates the schema if it does not exist. Safe to call repeatedly.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
