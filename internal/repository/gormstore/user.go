package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/history-api/internal/apperror"
	"github.com/sakif/history-api/internal/model"
)

// EnsureUser inserts a row for uid unless one exists. A concurrent insert of
// the same uid lands on ON CONFLICT DO NOTHING and is not an error.
func (s *Store) EnsureUser(ctx context.Context, uid string, email *string) error {
	now := time.Now().UTC()
	u := model.User{
		UID:       uid,
		Email:     email,
		CreatedAt: &now,
		UpdatedAt: &now,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "uid"}}, DoNothing: true}).
		Create(&u).Error
	if err != nil {
		return fmt.Errorf("gormstore: ensuring user %s: %w", uid, err)
	}
	return nil
}

// GetUser retrieves a user by UID.
func (s *Store) GetUser(ctx context.Context, uid string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("uid = ?", uid).Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", uid)
		}
		return nil, fmt.Errorf("gormstore: getting user %s: %w", uid, err)
	}
	return &u, nil
}
