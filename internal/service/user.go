package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/duochat/chat-server-go/internal/errors"
	"github.com/duochat/chat-server-go/internal/model"
	"github.com/duochat/chat-server-go/internal/repository"
	"github.com/duochat/chat-server-go/internal/util"
)

const invalidCredentialsMessage = "Invalid username or password"

// UserService is the user directory: credential storage and existence lookups.
type UserService struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

func NewUserService(userRepo repository.UserRepository, bcryptCost int) *UserService {
	return &UserService{
		userRepo:   userRepo,
		bcryptCost: bcryptCost,
	}
}

func (s *UserService) Register(ctx context.Context, username, password string) (*model.User, error) {
	name, err := util.ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	if err := util.ValidatePassword(password); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, name)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if exists {
		return nil, apperrors.AlreadyExists("Username")
	}

	hash, err := util.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Internal server error").WithCause(err)
	}

	user, err := s.userRepo.Create(ctx, model.CreateUserParams{
		Username:     name,
		PasswordHash: hash,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("Username")
		}
		return nil, apperrors.Database(err)
	}

	log.Info().Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Login verifies credentials and returns the canonical (lowercased) username.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	name, err := util.ValidateUsername(username)
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", apperrors.MissingRequired("Password")
	}

	user, err := s.userRepo.FindByUsername(ctx, name)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if user == nil || !util.CheckPasswordHash(password, user.PasswordHash) {
		return "", apperrors.Unauthorized(invalidCredentialsMessage)
	}

	return user.Username, nil
}

// Exists reports whether username is registered. The name is trimmed and lowercased first.
func (s *UserService) Exists(ctx context.Context, username string) (bool, error) {
	name := util.NormalizeUsername(username)
	if name == "" {
		return false, nil
	}
	return s.userRepo.Exists(ctx, name)
}
