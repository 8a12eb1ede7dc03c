package handler

import (
	"context"
	"sync"

	"github.com/duochat/chat-server-go/internal/model"
)

// memoryUserRepo is an in-memory repository.UserRepository for handler tests.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	err   error
}

func newMemoryUserRepo(usernames ...string) *memoryUserRepo {
	repo := &memoryUserRepo{users: make(map[string]*model.User)}
	for _, name := range usernames {
		repo.users[name] = &model.User{ID: name, Username: name}
	}
	return repo
}

func (m *memoryUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.users[username], nil
}

func (m *memoryUserRepo) Create(_ context.Context, params model.CreateUserParams) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	user := &model.User{ID: params.Username, Username: params.Username, PasswordHash: params.PasswordHash}
	m.users[params.Username] = user
	return user, nil
}

func (m *memoryUserRepo) Exists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.users[username]
	return ok, nil
}
