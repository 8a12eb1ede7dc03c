package model

import (
	"time"
)

// Session is a bearer-token grant. The token itself is never stored; records are keyed by
// its hash.
type Session struct {
	TokenHash string    `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
