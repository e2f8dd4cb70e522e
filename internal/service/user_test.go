package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/history-api/internal/apperror"
	"github.com/sakif/history-api/internal/model"
)

type mockUserRepo struct {
	users map[string]*model.User
}

func (m *mockUserRepo) EnsureUser(_ context.Context, uid string, email *string) error {
	if _, ok := m.users[uid]; !ok {
		m.users[uid] = &model.User{UID: uid, Email: email}
	}
	return nil
}

func (m *mockUserRepo) GetUser(_ context.Context, uid string) (*model.User, error) {
	u, ok := m.users[uid]
	if !ok {
		return nil, apperror.NotFound("user", uid)
	}
	out := *u
	return &out, nil
}

func TestUserService_Get(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*model.User{}}
	svc := NewUserService(repo, newTestLogger())
	ctx := context.Background()
	require.NoError(t, repo.EnsureUser(ctx, "alice", nil))

	u, err := svc.Get(ctx, alice, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UID)

	_, err = svc.Get(ctx, bob, "alice")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	u, err = svc.Get(ctx, admin, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UID)

	_, err = svc.Get(ctx, bob, "bob")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.EqualError(t, err, "user not found with id bob")
}
