// Package chat implements the realtime event protocol spoken over each client connection.
package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/duochat/chat-server-go/internal/audit"
	apperrors "github.com/duochat/chat-server-go/internal/errors"
	"github.com/duochat/chat-server-go/internal/hub"
	"github.com/duochat/chat-server-go/internal/model"
	"github.com/duochat/chat-server-go/internal/service"
	"github.com/duochat/chat-server-go/internal/store"
	"github.com/duochat/chat-server-go/internal/util"
)

const (
	defaultMaxImageBytes = 5 * 1024 * 1024
)

// UserDirectory answers whether a username is registered.
type UserDirectory interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// Options tunes history and image limits. Zero values fall back to defaults.
type Options struct {
	HistoryLimit    int
	MaxImageBytes   int
	MaxImageDataLen int
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = store.DefaultHistoryLimit
	}
	if o.MaxImageBytes <= 0 {
		o.MaxImageBytes = defaultMaxImageBytes
	}
	if o.MaxImageDataLen <= 0 {
		o.MaxImageDataLen = o.MaxImageBytes * 14 / 10
	}
	return o
}

// Router holds the state shared by every connection.
type Router struct {
	hub           *hub.Hub
	sessions      *store.SessionStore
	presence      *store.PresenceRegistry
	conversations *store.ConversationStore
	limiter       service.RateLimiter
	users         UserDirectory
	opts          Options
}

// NewRouter wires the shared stores behind the event protocol.
func NewRouter(
	h *hub.Hub,
	sessions *store.SessionStore,
	presence *store.PresenceRegistry,
	conversations *store.ConversationStore,
	limiter service.RateLimiter,
	users UserDirectory,
	opts Options,
) *Router {
	return &Router{
		hub:           h,
		sessions:      sessions,
		presence:      presence,
		conversations: conversations,
		limiter:       limiter,
		users:         users,
		opts:          opts.withDefaults(),
	}
}

// Connection is the per-connection protocol state. Handle is not safe for concurrent use;
// callers feed it events from a single read loop.
type Connection struct {
	router *Router
	client *hub.Client

	mu       sync.Mutex
	username string
	partner  string

	disconnectOnce sync.Once
}

// Connect registers a new unauthenticated connection.
func (r *Router) Connect() *Connection {
	conn := &Connection{
		router: r,
		client: r.hub.Register(),
	}
	log.Debug().Str("connId", conn.ID()).Msg("connection opened")
	return conn
}

func (c *Connection) ID() string {
	return c.client.ID
}

// Client exposes the outbound event queue for the transport writer.
func (c *Connection) Client() *hub.Client {
	return c.client
}

func (c *Connection) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Connection) Partner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partner
}

func (c *Connection) Authenticated() bool {
	return c.Username() != ""
}

func (c *Connection) closed() bool {
	select {
	case <-c.client.Done:
		return true
	default:
		return false
	}
}

// HandleFrame decodes a raw {"event","data"} frame and handles it. Frames that are not
// valid envelopes are answered with an error event.
func (c *Connection) HandleFrame(ctx context.Context, frame []byte) {
	var event hub.Event
	if err := json.Unmarshal(frame, &event); err != nil || event.Name == "" {
		c.emit(EventError, ErrorEvent{Message: msgInvalidFrame})
		return
	}
	c.Handle(ctx, event)
}

// Handle dispatches one inbound event to completion. Once the connection has been closed,
// by Disconnect or a global wipe, every event is dropped.
func (c *Connection) Handle(ctx context.Context, event hub.Event) {
	if c.closed() {
		log.Debug().Str("connId", c.ID()).Str("event", event.Name).Msg("dropping event on closed connection")
		return
	}

	switch event.Name {
	case EventAuthenticate:
		c.handleAuthenticate(ctx, event)
	case EventTyping:
		c.handleTyping(event)
	case EventGetOnlineUsers, EventStartChat, EventSendMessage, EventSendImage:
		if !c.Authenticated() {
			c.emitError(apperrors.NotAuthenticated())
			return
		}
		switch event.Name {
		case EventGetOnlineUsers:
			c.handleGetOnlineUsers()
		case EventStartChat:
			c.handleStartChat(ctx, event)
		case EventSendMessage:
			c.handleSendMessage(ctx, event)
		case EventSendImage:
			c.handleSendImage(ctx, event)
		}
	case EventDisconnect:
		c.Disconnect()
	default:
		log.Debug().Str("connId", c.ID()).Str("event", event.Name).Msg("ignoring unknown event")
	}
}

func (c *Connection) handleAuthenticate(ctx context.Context, event hub.Event) {
	r := c.router
	token := parseToken(event.Data)

	session, ok := r.sessions.Validate(token)
	if !ok {
		audit.Log(ctx, audit.Event{Type: audit.EventAuthFailure, ConnID: c.ID()})
		c.emit(EventAuthenticated, AuthenticatedEvent{Success: false, Error: msgInvalidSession})
		return
	}

	username := session.Username
	previous := c.Username()
	if previous != "" && previous != username {
		c.dropIdentity()
	}

	c.mu.Lock()
	c.username = username
	c.mu.Unlock()

	r.presence.SetOnline(username, c.ID())
	r.hub.Join(c.client, PersonalGroup(username))

	c.emit(EventAuthenticated, AuthenticatedEvent{Success: true, Username: username})
	r.broadcastAll(EventUserOnline, PresenceEvent{Username: username}, c.ID())

	log.Info().Str("username", username).Str("connId", c.ID()).Msg("user authenticated")
}

// dropIdentity undoes a previous authentication on this connection.
func (c *Connection) dropIdentity() {
	r := c.router

	c.mu.Lock()
	username, partner := c.username, c.partner
	c.username, c.partner = "", ""
	c.mu.Unlock()

	r.hub.Leave(c.client, PersonalGroup(username))
	if partner != "" {
		r.hub.Leave(c.client, RoomGroup(store.RoomKey(username, partner)))
	}
	if _, offline := r.presence.RemoveConnection(c.ID()); offline {
		r.broadcastAll(EventUserOffline, PresenceEvent{Username: username}, c.ID())
	}
}

func (c *Connection) handleGetOnlineUsers() {
	c.emit(EventOnlineUsers, OnlineUsersEvent{Users: c.router.partnerStatuses(c.Username())})
}

func (c *Connection) handleStartChat(ctx context.Context, event hub.Event) {
	r := c.router
	self := c.Username()

	var req StartChatRequest
	decode(event.Data, &req)
	if err := req.Validate(self); err != nil {
		c.emitError(err)
		return
	}

	if !r.userExists(ctx, req.Username) {
		c.emitError(apperrors.NotFound("User"))
		return
	}

	roomKey := store.RoomKey(self, req.Username)

	c.mu.Lock()
	c.partner = req.Username
	c.mu.Unlock()

	r.hub.Join(c.client, RoomGroup(roomKey))

	c.emit(EventChatStarted, ChatStartedEvent{
		Success:  true,
		Partner:  req.Username,
		RoomID:   roomKey,
		Messages: r.conversations.RecentMessages(self, req.Username, r.opts.HistoryLimit),
		IsOnline: r.presence.IsOnline(req.Username),
	})

	log.Info().
		Str("username", self).
		Str("partner", req.Username).
		Int("roomConnections", r.hub.GroupSize(RoomGroup(roomKey))).
		Msg("chat started")
}

func (c *Connection) handleSendMessage(ctx context.Context, event hub.Event) {
	r := c.router
	self := c.Username()

	var req SendMessageRequest
	decode(event.Data, &req)
	if err := req.Validate(); err != nil {
		c.emitError(err)
		return
	}
	if !c.checkSend(ctx, event.Name, req.To) {
		return
	}

	isNew := !r.conversations.HasHistory(self, req.To)
	msg := r.conversations.AppendMessage(self, req.To, req.Text)
	r.deliver(msg, isNew)

	log.Debug().Str("from", self).Str("to", req.To).Msg("message sent")
}

func (c *Connection) handleSendImage(ctx context.Context, event hub.Event) {
	r := c.router
	self := c.Username()

	var req SendImageRequest
	decode(event.Data, &req)
	if err := req.Validate(r.opts.MaxImageDataLen, r.opts.MaxImageBytes); err != nil {
		c.emitError(err)
		return
	}
	if !c.checkSend(ctx, event.Name, req.To) {
		return
	}

	isNew := !r.conversations.HasHistory(self, req.To)
	msg := r.conversations.AppendImageMessage(self, req.To, req.ImageData, req.MimeType)
	r.deliver(msg, isNew)

	log.Debug().Str("from", self).Str("to", req.To).Int("size", len(req.ImageData)).Msg("image sent")
}

// checkSend applies the rate limit and recipient lookup shared by text and image sends.
func (c *Connection) checkSend(ctx context.Context, eventName, to string) bool {
	r := c.router
	self := c.Username()

	if !r.limiter.Allow(ctx, self) {
		audit.Log(ctx, audit.Event{
			Type:     audit.EventRateLimitExceed,
			Username: self,
			ConnID:   c.ID(),
			Details:  map[string]interface{}{"event": eventName},
		})
		c.emitError(apperrors.RateLimitExceeded(msgTooManyMessages))
		return false
	}

	if !r.userExists(ctx, to) {
		c.emitError(apperrors.NotFound("User"))
		return false
	}
	return true
}

// Typing is best effort and never reports errors.
func (c *Connection) handleTyping(event hub.Event) {
	self := c.Username()
	if self == "" {
		return
	}

	var req TypingRequest
	if !decode(event.Data, &req) {
		return
	}
	to := util.NormalizeUsername(req.To)
	if to == "" {
		return
	}

	c.router.broadcastGroup(
		RoomGroup(store.RoomKey(self, to)),
		EventUserTyping,
		UserTypingEvent{Username: self, IsTyping: req.IsTyping},
		c.ID(),
	)
}

// Disconnect releases presence and hub state. Safe to call more than once.
func (c *Connection) Disconnect() {
	c.disconnectOnce.Do(func() {
		r := c.router
		username := c.Username()

		if username != "" {
			if _, offline := r.presence.RemoveConnection(c.ID()); offline {
				r.broadcastAll(EventUserOffline, PresenceEvent{Username: username}, c.ID())
				log.Info().Str("username", username).Msg("user offline")
			}
		}

		c.mu.Lock()
		c.username, c.partner = "", ""
		c.mu.Unlock()

		r.hub.Unregister(c.client)
		log.Debug().Str("connId", c.ID()).Msg("connection closed")
	})
}

func (c *Connection) emit(name string, payload any) {
	event, err := hub.NewEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to encode event")
		return
	}
	c.router.hub.Emit(c.ID(), event)
}

func (c *Connection) emitError(err error) {
	message := msgInternalError
	if appErr, ok := apperrors.AsAppError(err); ok {
		message = appErr.Message
	}
	c.emit(EventError, ErrorEvent{Message: message})
}

// deliver fans a stored message out to the room group and to each recipient connection
// outside it, then refreshes both chat lists when the room was empty before.
func (r *Router) deliver(msg model.Message, isNew bool) {
	roomKey := store.RoomKey(msg.From, msg.To)
	group := RoomGroup(roomKey)

	r.broadcastGroup(group, EventNewMessage, NewMessageEvent{Message: msg}, "")

	direct, err := hub.NewEvent(EventNewMessage, NewMessageEvent{Message: msg, RoomID: roomKey})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode event")
	} else {
		for _, connID := range r.presence.ConnectionsFor(msg.To) {
			if r.hub.InGroup(connID, group) {
				continue
			}
			r.hub.Emit(connID, direct)
		}
	}

	if isNew {
		r.refreshPartners(msg.From)
		if msg.To != msg.From {
			r.refreshPartners(msg.To)
		}
	}
}

func (r *Router) refreshPartners(username string) {
	r.broadcastGroup(
		PersonalGroup(username),
		EventOnlineUsers,
		OnlineUsersEvent{Users: r.partnerStatuses(username)},
		"",
	)
}

func (r *Router) partnerStatuses(username string) []model.PartnerStatus {
	partners := r.conversations.PartnersOf(username)
	users := make([]model.PartnerStatus, 0, len(partners))
	for _, p := range partners {
		users = append(users, model.PartnerStatus{
			Username: p,
			IsOnline: r.presence.IsOnline(p),
		})
	}
	return users
}

// userExists treats directory failures as a missing user so one bad lookup only fails
// the current request.
func (r *Router) userExists(ctx context.Context, username string) bool {
	exists, err := r.users.Exists(ctx, username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("user lookup failed")
		return false
	}
	return exists
}

func (r *Router) broadcastAll(name string, payload any, except string) {
	event, err := hub.NewEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to encode event")
		return
	}
	r.hub.EmitAll(event, except)
}

func (r *Router) broadcastGroup(group, name string, payload any, except string) {
	event, err := hub.NewEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to encode event")
		return
	}
	r.hub.EmitGroup(group, event, except)
}

// Stats is a point-in-time snapshot of live state.
type Stats struct {
	Connections              int `json:"connections"`
	AuthenticatedConnections int `json:"authenticatedConnections"`
	OnlineUsers              int `json:"onlineUsers"`
	Rooms                    int `json:"rooms"`
}

func (r *Router) Stats() Stats {
	return Stats{
		Connections:              r.hub.ClientCount(),
		AuthenticatedConnections: r.presence.ConnectionCount(),
		OnlineUsers:              len(r.presence.OnlineUsers()),
		Rooms:                    r.conversations.RoomCount(),
	}
}

// ExpireAll is the scheduled global wipe. It clears all conversation and session state,
// sends session-expired to every connection and closes them. It returns the number of
// connections closed.
func (r *Router) ExpireAll(ctx context.Context) int {
	rooms := r.conversations.ClearAll()
	sessions := r.sessions.ClearAll()

	if err := r.limiter.Reset(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to reset rate limits")
	}

	r.broadcastAll(EventSessionExpired, SessionExpiredEvent{Message: msgSessionExpired}, "")
	closed := r.hub.DisconnectAll()

	audit.Log(ctx, audit.Event{
		Type: audit.EventGlobalWipe,
		Details: map[string]interface{}{
			"rooms":       rooms,
			"sessions":    sessions,
			"connections": closed,
		},
	})
	return closed
}
