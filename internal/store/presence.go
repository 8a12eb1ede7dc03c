package store

import (
	"sort"
	"sync"
)

type PresenceRegistry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{} // username -> connection IDs
	byConn map[string]string              // connection ID -> username
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byUser: make(map[string]map[string]struct{}),
		byConn: make(map[string]string),
	}
}

func (p *PresenceRegistry) SetOnline(username, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// A connection belongs to exactly one user.
	if prev, ok := p.byConn[connID]; ok && prev != username {
		p.removeLocked(connID)
	}

	conns, ok := p.byUser[username]
	if !ok {
		conns = make(map[string]struct{})
		p.byUser[username] = conns
	}
	conns[connID] = struct{}{}
	p.byConn[connID] = username
}

// RemoveConnection drops connID and reports its owner and whether that owner has no
// connections left. Unknown IDs return ("", false).
func (p *PresenceRegistry) RemoveConnection(connID string) (username string, fullyOffline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(connID)
}

func (p *PresenceRegistry) removeLocked(connID string) (string, bool) {
	username, ok := p.byConn[connID]
	if !ok {
		return "", false
	}
	delete(p.byConn, connID)

	conns := p.byUser[username]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.byUser, username)
		return username, true
	}
	return username, false
}

func (p *PresenceRegistry) IsOnline(username string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[username]) > 0
}

// ConnectionsFor returns a snapshot of username's connection IDs.
func (p *PresenceRegistry) ConnectionsFor(username string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := p.byUser[username]
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *PresenceRegistry) OnlineUsers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]string, 0, len(p.byUser))
	for u := range p.byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func (p *PresenceRegistry) ConnectionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byConn)
}
