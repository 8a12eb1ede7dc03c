package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duochat/chat-server-go/internal/model"
	"github.com/duochat/chat-server-go/internal/util"
)

// RoomSeparator joins the two participants of a room key. Usernames are alphanumeric so it
// never appears inside one.
const RoomSeparator = "_"

const DefaultHistoryLimit = 50

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// RoomKey is the canonical identifier of the unordered pair {a, b}.
func RoomKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + RoomSeparator + b
}

// ConversationStore keeps an append-only message log per room. A room exists iff its log
// has at least one message.
type ConversationStore struct {
	mu    sync.RWMutex
	rooms map[string][]model.Message
	now   Clock
}

func NewConversationStore(opts ...Option) *ConversationStore {
	o := applyOptions(opts)
	return &ConversationStore{
		rooms: make(map[string][]model.Message),
		now:   o.clock,
	}
}

func (c *ConversationStore) RoomKey(a, b string) string {
	return RoomKey(a, b)
}

func (c *ConversationStore) AppendMessage(from, to, text string) model.Message {
	return c.append(model.Message{
		From: from,
		To:   to,
		Kind: model.MessageKindText,
		Text: SanitizeText(text),
	})
}

// AppendImageMessage stores the data URI as given. Callers validate format and size.
func (c *ConversationStore) AppendImageMessage(from, to, imageData, mimeType string) model.Message {
	return c.append(model.Message{
		From:      from,
		To:        to,
		Kind:      model.MessageKindImage,
		ImageData: imageData,
		MimeType:  mimeType,
	})
}

func (c *ConversationStore) append(msg model.Message) model.Message {
	now := c.now()
	msg.ID = newMessageID(now)
	msg.Timestamp = now.UTC().Format(timestampLayout)

	key := RoomKey(msg.From, msg.To)

	c.mu.Lock()
	c.rooms[key] = append(c.rooms[key], msg)
	c.mu.Unlock()

	return msg
}

// RecentMessages returns up to limit of the latest messages between a and b, oldest first.
// A non-positive limit falls back to DefaultHistoryLimit.
func (c *ConversationStore) RecentMessages(a, b string, limit int) []model.Message {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.rooms[RoomKey(a, b)]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (c *ConversationStore) HasHistory(a, b string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms[RoomKey(a, b)]) > 0
}

// PartnersOf scans every room and returns the sorted set of users username has a log with.
// Cost is linear in the number of rooms.
func (c *ConversationStore) PartnersOf(username string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for key := range c.rooms {
		first, second, ok := strings.Cut(key, RoomSeparator)
		if !ok {
			continue
		}
		switch username {
		case first:
			seen[second] = struct{}{}
		case second:
			seen[first] = struct{}{}
		}
	}

	partners := make([]string, 0, len(seen))
	for p := range seen {
		partners = append(partners, p)
	}
	sort.Strings(partners)
	return partners
}

func (c *ConversationStore) ClearAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.rooms)
	c.rooms = make(map[string][]model.Message)

	log.Info().Int("rooms", count).Msg("all messages cleared")
	return count
}

func (c *ConversationStore) RoomCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}

func newMessageID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), util.RandomString(9))
}
