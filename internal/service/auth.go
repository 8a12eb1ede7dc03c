package service

import (
	"context"

	apperrors "github.com/duochat/chat-server-go/internal/errors"
	"github.com/duochat/chat-server-go/internal/model"
	"github.com/duochat/chat-server-go/internal/store"
)

type AuthResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// AuthService issues sessions for verified users.
type AuthService struct {
	users    *UserService
	sessions *store.SessionStore
}

func NewAuthService(users *UserService, sessions *store.SessionStore) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
	}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.Register(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.issue(user.Username)
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	name, err := s.users.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.issue(name)
}

func (s *AuthService) Logout(token string) bool {
	if token == "" {
		return false
	}
	return s.sessions.Invalidate(token)
}

func (s *AuthService) Validate(token string) (*model.Session, error) {
	session, ok := s.sessions.Validate(token)
	if !ok {
		return nil, apperrors.InvalidToken("Invalid or expired session")
	}
	return session, nil
}

func (s *AuthService) issue(username string) (*AuthResult, error) {
	token, err := s.sessions.Create(username)
	if err != nil {
		return nil, apperrors.Internal("Internal server error").WithCause(err)
	}
	return &AuthResult{Token: token, Username: username}, nil
}
