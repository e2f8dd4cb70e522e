package repository

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sakif/history-api/internal/model"
)

// OpenFunc opens a concrete Store.
type OpenFunc func(ctx context.Context) (Store, error)

// Lazy is a Store that connects on first use.
//
// It can be built and handed to services at startup without touching the
// database. The first call opens the underlying store; later calls reuse it
// for the life of the process. A failed open is not remembered, so the next
// call tries again.
type Lazy struct {
	open OpenFunc

	mu    sync.Mutex
	store Store
}

var _ Store = (*Lazy)(nil)

// NewLazy wraps open in a deferred-initialisation holder.
func NewLazy(open OpenFunc) *Lazy {
	return &Lazy{open: open}
}

// get returns the underlying store, opening it if needed.
func (l *Lazy) get(ctx context.Context) (Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		return l.store, nil
	}

	s, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.store = s
	return s, nil
}

func (l *Lazy) EnsureUser(ctx context.Context, uid string, email *string) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.EnsureUser(ctx, uid, email)
}

func (l *Lazy) GetUser(ctx context.Context, uid string) (*model.User, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, uid)
}

func (l *Lazy) ListHistories(ctx context.Context, userID string, opts ListOptions) ([]model.History, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.ListHistories(ctx, userID, opts)
}

func (l *Lazy) CreateHistory(ctx context.Context, h *model.History) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.CreateHistory(ctx, h)
}

func (l *Lazy) UpdateHistory(ctx context.Context, id, userID string, patch model.HistoryPatch) (*model.History, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.UpdateHistory(ctx, id, userID, patch)
}

func (l *Lazy) DeleteHistory(ctx context.Context, id, userID string) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.DeleteHistory(ctx, id, userID)
}

func (l *Lazy) SumHistoryValues(ctx context.Context) (decimal.Decimal, error) {
	s, err := l.get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return s.SumHistoryValues(ctx)
}

func (l *Lazy) Migrate(ctx context.Context) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Migrate(ctx)
}

func (l *Lazy) Ping(ctx context.Context) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close closes the underlying store if it was ever opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}
