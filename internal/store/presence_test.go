package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceRegistry_MultipleConnections(t *testing.T) {
	p := NewPresenceRegistry()

	p.SetOnline("alice", "c1")
	p.SetOnline("alice", "c2")
	assert.True(t, p.IsOnline("alice"))
	assert.Equal(t, []string{"c1", "c2"}, p.ConnectionsFor("alice"))

	username, offline := p.RemoveConnection("c1")
	assert.Equal(t, "alice", username)
	assert.False(t, offline)
	assert.True(t, p.IsOnline("alice"))

	username, offline = p.RemoveConnection("c2")
	assert.Equal(t, "alice", username)
	assert.True(t, offline)
	assert.False(t, p.IsOnline("alice"))
	assert.Empty(t, p.ConnectionsFor("alice"))
}

func TestPresenceRegistry_UnknownConnection(t *testing.T) {
	p := NewPresenceRegistry()

	username, offline := p.RemoveConnection("ghost")
	assert.Empty(t, username)
	assert.False(t, offline)
}

func TestPresenceRegistry_RemoveIsIdempotent(t *testing.T) {
	p := NewPresenceRegistry()
	p.SetOnline("bob", "c1")

	_, offline := p.RemoveConnection("c1")
	assert.True(t, offline)

	username, offline := p.RemoveConnection("c1")
	assert.Empty(t, username)
	assert.False(t, offline)
}

func TestPresenceRegistry_ReverseIndex(t *testing.T) {
	p := NewPresenceRegistry()
	p.SetOnline("alice", "c1")
	p.SetOnline("bob", "c2")

	assert.Equal(t, []string{"c2"}, p.ConnectionsFor("bob"))
	assert.Empty(t, p.ConnectionsFor("carol"))

	assert.Equal(t, []string{"alice", "bob"}, p.OnlineUsers())
	assert.Equal(t, 2, p.ConnectionCount())
}

func TestPresenceRegistry_RebindConnection(t *testing.T) {
	p := NewPresenceRegistry()
	p.SetOnline("alice", "c1")
	p.SetOnline("bob", "c1")

	assert.False(t, p.IsOnline("alice"))
	assert.True(t, p.IsOnline("bob"))
	assert.Equal(t, 1, p.ConnectionCount())
}
