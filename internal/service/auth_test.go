package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/duochat/chat-server-go/internal/errors"
	"github.com/duochat/chat-server-go/internal/model"
	"github.com/duochat/chat-server-go/internal/store"
	"github.com/duochat/chat-server-go/internal/util"
)

func newTestAuthService(repo *mockUserRepo) (*AuthService, *store.SessionStore) {
	sessions := store.NewSessionStore(time.Hour)
	return NewAuthService(NewUserService(repo, testBcryptCost), sessions), sessions
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	repo := new(mockUserRepo)
	auth, sessions := newTestAuthService(repo)

	repo.On("Exists", ctx, "alice").Return(false, nil)
	repo.On("Create", ctx, mock.Anything).Return(&model.User{Username: "alice"}, nil)

	result, err := auth.Register(ctx, "Alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Username)
	assert.NotEmpty(t, result.Token)

	session, ok := sessions.Validate(result.Token)
	require.True(t, ok)
	assert.Equal(t, "alice", session.Username)
}

func TestAuthService_LoginValidateLogout(t *testing.T) {
	ctx := context.Background()
	repo := new(mockUserRepo)
	auth, _ := newTestAuthService(repo)

	hash, err := util.HashPassword("secret", testBcryptCost)
	require.NoError(t, err)
	repo.On("FindByUsername", ctx, "bob").Return(&model.User{Username: "bob", PasswordHash: hash}, nil)

	first, err := auth.Login(ctx, "bob", "secret")
	require.NoError(t, err)
	second, err := auth.Login(ctx, "bob", "secret")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token, "each login gets its own session")

	session, err := auth.Validate(first.Token)
	require.NoError(t, err)
	assert.Equal(t, "bob", session.Username)

	assert.True(t, auth.Logout(first.Token))
	assert.False(t, auth.Logout(first.Token))
	assert.False(t, auth.Logout(""))

	_, err = auth.Validate(first.Token)
	assert.Equal(t, apperrors.ErrCodeInvalidToken, apperrors.GetCode(err))

	_, err = auth.Validate(second.Token)
	assert.NoError(t, err)
}

func TestAuthService_LoginFailureCreatesNoSession(t *testing.T) {
	ctx := context.Background()
	repo := new(mockUserRepo)
	auth, sessions := newTestAuthService(repo)
	repo.On("FindByUsername", ctx, "ghost").Return(nil, nil)

	_, err := auth.Login(ctx, "ghost", "secret")
	assert.Error(t, err)
	assert.Zero(t, sessions.Count())
}
