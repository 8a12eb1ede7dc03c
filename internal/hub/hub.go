// Package hub fans events out to live connections, either one at a time or through named
// broadcast groups.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultBufferSize = 64

// Event is the wire envelope shared by inbound and outbound traffic.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into an Event. A nil payload produces an event with no data.
func NewEvent(name string, payload any) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}

type Client struct {
	ID     string
	Events chan Event
	Done   chan struct{}

	groups    map[string]struct{} // guarded by Hub.mu
	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.Done)
	})
}

type Hub struct {
	clients    map[string]*Client
	groups     map[string]map[*Client]bool // group -> set of clients
	mu         sync.RWMutex
	bufferSize int
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[*Client]bool),
		bufferSize: bufferSize,
	}
}

// Register creates a client with a fresh connection ID.
func (h *Hub) Register() *Client {
	client := &Client{
		ID:     uuid.NewString(),
		Events: make(chan Event, h.bufferSize),
		Done:   make(chan struct{}),
		groups: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	log.Debug().
		Str("connId", client.ID).
		Int("clientCount", total).
		Msg("hub client registered")

	return client
}

// Unregister removes client from the hub and every group it joined, then closes Done.
// Calling it more than once is safe.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		h.removeLocked(client)
	}
	total := len(h.clients)
	h.mu.Unlock()

	client.close()

	if ok {
		log.Debug().
			Str("connId", client.ID).
			Int("clientCount", total).
			Msg("hub client unregistered")
	}
}

func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client.ID)
	for group := range client.groups {
		if members, ok := h.groups[group]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
	}
	client.groups = make(map[string]struct{})
}

// Join adds client to group. Unregistered clients are ignored.
func (h *Hub) Join(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][client] = true
	client.groups[group] = struct{}{}
}

func (h *Hub) Leave(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.groups[group]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	delete(client.groups, group)
}

// InGroup reports whether the connection is currently a member of group.
func (h *Hub) InGroup(connID, group string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	return h.groups[group][client]
}

// Emit delivers event to a single connection. It returns false if the connection is gone
// or its buffer is full.
func (h *Hub) Emit(connID string, event Event) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()

	if !ok {
		return false
	}
	return deliver(client, event)
}

// EmitGroup delivers event to every member of group except the connection with ID except.
// It returns the number of clients the event was queued for.
func (h *Hub) EmitGroup(group string, event Event, except string) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.groups[group]))
	for client := range h.groups[group] {
		if client.ID != except {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	return deliverAll(targets, event)
}

// EmitAll delivers event to every registered client except the connection with ID except.
func (h *Hub) EmitAll(event Event, except string) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		if id != except {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	return deliverAll(targets, event)
}

// DisconnectAll closes every client and empties the hub. Events already queued stay in
// each client's buffer for the writer to flush.
func (h *Hub) DisconnectAll() int {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.groups = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}

	if len(clients) > 0 {
		log.Info().Int("count", len(clients)).Msg("hub disconnected all clients")
	}
	return len(clients)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func deliverAll(clients []*Client, event Event) int {
	sent := 0
	for _, client := range clients {
		if deliver(client, event) {
			sent++
		}
	}
	return sent
}

func deliver(client *Client, event Event) bool {
	select {
	case client.Events <- event:
		return true
	default:
		log.Warn().
			Str("connId", client.ID).
			Str("event", event.Name).
			Msg("client event buffer full, dropping event")
		return false
	}
}
