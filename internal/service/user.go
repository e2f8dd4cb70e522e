package service

import (
	"context"
	"log/slog"

	"github.com/sakif/history-api/internal/auth"
	"github.com/sakif/history-api/internal/model"
	"github.com/sakif/history-api/internal/repository"
)

type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// Get returns the user row for uid. Owner or site admin only.
func (s *UserService) Get(ctx context.Context, p *auth.Principal, uid string) (*model.User, error) {
	if err := authorize(p, uid); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, uid)
}
