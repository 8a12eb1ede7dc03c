package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duochat/chat-server-go/internal/model"
	"github.com/duochat/chat-server-go/internal/util"
)

const DefaultSessionTTL = 12 * time.Hour

type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session // token hash -> session
	ttl      time.Duration
	now      Clock
}

func NewSessionStore(ttl time.Duration, opts ...Option) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	o := applyOptions(opts)
	return &SessionStore{
		sessions: make(map[string]*model.Session),
		ttl:      ttl,
		now:      o.clock,
	}
}

// Create issues a new token for username. A user may hold any number of sessions.
func (s *SessionStore) Create(username string) (string, error) {
	token, err := util.GenerateToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	session := &model.Session{
		TokenHash: util.HashToken(token),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.TokenHash] = session
	s.mu.Unlock()

	return token, nil
}

// Validate returns a copy of the session for token, or false if the token is unknown or
// expired. Expired records are removed.
func (s *SessionStore) Validate(token string) (*model.Session, bool) {
	if token == "" {
		return nil, false
	}

	hash := util.HashToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[hash]
	if !ok {
		return nil, false
	}

	if session.IsExpired(s.now()) {
		delete(s.sessions, hash)
		return nil, false
	}

	copied := *session
	return &copied, true
}

func (s *SessionStore) Invalidate(token string) bool {
	hash := util.HashToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[hash]; !ok {
		return false
	}
	delete(s.sessions, hash)
	return true
}

// InvalidateUser removes every session owned by username and returns how many were removed.
func (s *SessionStore) InvalidateUser(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for hash, session := range s.sessions {
		if session.Username == username {
			delete(s.sessions, hash)
			removed++
		}
	}
	return removed
}

func (s *SessionStore) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.sessions)
	s.sessions = make(map[string]*model.Session)

	log.Info().Int("count", count).Msg("all sessions cleared")
	return count
}

func (s *SessionStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for hash, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, hash)
			removed++
		}
	}
	return removed
}

func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
