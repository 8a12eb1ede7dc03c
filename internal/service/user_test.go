package service

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/duochat/chat-server-go/internal/errors"
	"github.com/duochat/chat-server-go/internal/model"
	"github.com/duochat/chat-server-go/internal/util"
)

const testBcryptCost = 4

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates lowercased user with hashed password", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)

		repo.On("Exists", ctx, "alice").Return(false, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(p model.CreateUserParams) bool {
			return p.Username == "alice" && util.CheckPasswordHash("secret", p.PasswordHash)
		})).Return(&model.User{ID: "u1", Username: "alice"}, nil)

		user, err := svc.Register(ctx, " Alice ", "secret")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		repo.AssertExpectations(t)
	})

	t.Run("rejects invalid username before touching the repository", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)

		_, err := svc.Register(ctx, "a!", "secret")
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
		repo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
	})

	t.Run("rejects short password", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)

		_, err := svc.Register(ctx, "alice", "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 4")
	})

	t.Run("existing username", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)
		repo.On("Exists", ctx, "alice").Return(true, nil)

		_, err := svc.Register(ctx, "alice", "secret")
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeAlreadyExists, appErr.Code)
		assert.Equal(t, "Username already exists", appErr.Message)
	})

	t.Run("unique violation on insert race", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)
		repo.On("Exists", ctx, "alice").Return(false, nil)
		repo.On("Create", ctx, mock.Anything).Return(nil, &pq.Error{Code: "23505"})

		_, err := svc.Register(ctx, "alice", "secret")
		assert.Equal(t, apperrors.ErrCodeAlreadyExists, apperrors.GetCode(err))
	})

	t.Run("database failure", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)
		repo.On("Exists", ctx, "alice").Return(false, errors.New("connection refused"))

		_, err := svc.Register(ctx, "alice", "secret")
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := util.HashPassword("secret", testBcryptCost)
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)
		repo.On("FindByUsername", ctx, "bob").Return(&model.User{Username: "bob", PasswordHash: hash}, nil)

		name, err := svc.Login(ctx, "BOB", "secret")
		require.NoError(t, err)
		assert.Equal(t, "bob", name)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)
		repo.On("FindByUsername", ctx, "bob").Return(&model.User{Username: "bob", PasswordHash: hash}, nil)

		_, err := svc.Login(ctx, "bob", "nope")
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "Invalid username or password", appErr.Message)
	})

	t.Run("unknown user gets the same message", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)
		repo.On("FindByUsername", ctx, "ghost").Return(nil, nil)

		_, err := svc.Login(ctx, "ghost", "secret")
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "Invalid username or password", appErr.Message)
	})

	t.Run("missing password", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo, testBcryptCost)

		_, err := svc.Login(ctx, "bob", "")
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})
}

func TestUserService_Exists(t *testing.T) {
	ctx := context.Background()
	repo := new(mockUserRepo)
	svc := NewUserService(repo, testBcryptCost)
	repo.On("Exists", ctx, "bob").Return(true, nil)

	exists, err := svc.Exists(ctx, "  Bob ")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.Exists(ctx, "   ")
	require.NoError(t, err)
	assert.False(t, exists)
	repo.AssertNumberOfCalls(t, "Exists", 1)
}
