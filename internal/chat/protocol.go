package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/duochat/chat-server-go/internal/errors"
	"github.com/duochat/chat-server-go/internal/model"
	"github.com/duochat/chat-server-go/internal/store"
	"github.com/duochat/chat-server-go/internal/util"
)

// Inbound events.
const (
	EventAuthenticate   = "authenticate"
	EventGetOnlineUsers = "get-online-users"
	EventStartChat      = "start-chat"
	EventSendMessage    = "send-message"
	EventSendImage      = "send-image"
	EventTyping         = "typing"
	EventDisconnect     = "disconnect"
)

// Outbound events.
const (
	EventAuthenticated  = "authenticated"
	EventOnlineUsers    = "online-users"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
	EventChatStarted    = "chat-started"
	EventNewMessage     = "new-message"
	EventUserTyping     = "user-typing"
	EventError          = "error"
	EventSessionExpired = "session-expired"
)

const (
	imageDataPrefix = "data:image/"

	msgInvalidSession   = "Invalid or expired session"
	msgSessionExpired   = "Session expired. Please login again."
	msgTooManyMessages  = "Too many messages. Please wait a moment."
	msgInternalError    = "Internal server error"
	msgInvalidFrame     = "Invalid message format"
	personalGroupPrefix = "user:"
	roomGroupPrefix     = "chat:"
)

func PersonalGroup(username string) string {
	return personalGroupPrefix + username
}

func RoomGroup(roomKey string) string {
	return roomGroupPrefix + roomKey
}

// AuthenticateRequest is the object form of the authenticate payload. A bare JSON string
// token is accepted too.
type AuthenticateRequest struct {
	Token string `json:"token"`
}

func parseToken(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var token string
	if err := json.Unmarshal(data, &token); err == nil {
		return strings.TrimSpace(token)
	}
	var req AuthenticateRequest
	if err := json.Unmarshal(data, &req); err == nil {
		return strings.TrimSpace(req.Token)
	}
	return ""
}

type StartChatRequest struct {
	Username string `json:"username"`
}

// Validate normalizes the target and rejects empty targets and self-chat.
func (r *StartChatRequest) Validate(self string) error {
	r.Username = util.NormalizeUsername(r.Username)
	if r.Username == "" {
		return apperrors.MissingRequired("Username")
	}
	if r.Username == self {
		return apperrors.ValidationError("Cannot chat with yourself")
	}
	return nil
}

type SendMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (r *SendMessageRequest) Validate() error {
	r.To = util.NormalizeUsername(r.To)
	r.Text = strings.TrimSpace(r.Text)
	if r.To == "" || r.Text == "" {
		return apperrors.New(apperrors.ErrCodeMissingRequired, "Recipient and message are required")
	}
	if utf8.RuneCountInString(r.Text) > store.MaxTextLength {
		return apperrors.ValidationError(fmt.Sprintf("Message too long (max %d characters)", store.MaxTextLength))
	}
	return nil
}

type SendImageRequest struct {
	To        string `json:"to"`
	ImageData string `json:"imageData"`
	MimeType  string `json:"mimeType"`
}

// Validate checks the data URI marker and size. maxDataLen bounds the encoded length;
// maxBytes is the binary limit quoted back to the client.
func (r *SendImageRequest) Validate(maxDataLen, maxBytes int) error {
	r.To = util.NormalizeUsername(r.To)
	if r.To == "" || r.ImageData == "" {
		return apperrors.New(apperrors.ErrCodeMissingRequired, "Recipient and image are required")
	}
	if !strings.HasPrefix(r.ImageData, imageDataPrefix) {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "Invalid image data")
	}
	if len(r.ImageData) > maxDataLen {
		return apperrors.ValidationError(fmt.Sprintf("Image too large. Maximum size is %dMB", maxBytes/(1024*1024)))
	}
	return nil
}

type TypingRequest struct {
	To       string `json:"to"`
	IsTyping bool   `json:"isTyping"`
}

type AuthenticatedEvent struct {
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}

type OnlineUsersEvent struct {
	Users []model.PartnerStatus `json:"users"`
}

// PresenceEvent is the payload of both user-online and user-offline.
type PresenceEvent struct {
	Username string `json:"username"`
}

type ChatStartedEvent struct {
	Success  bool            `json:"success"`
	Partner  string          `json:"partner"`
	RoomID   string          `json:"roomId"`
	Messages []model.Message `json:"messages"`
	IsOnline bool            `json:"isOnline"`
}

// NewMessageEvent carries RoomID only on the direct copy sent to the recipient's
// connections outside the room group.
type NewMessageEvent struct {
	Message model.Message `json:"message"`
	RoomID  string        `json:"roomId,omitempty"`
}

type UserTypingEvent struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type SessionExpiredEvent struct {
	Message string `json:"message"`
}

// decode fills v from data. Missing or malformed payloads leave v at its zero value so
// required-field validation reports them.
func decode(data json.RawMessage, v any) bool {
	if len(data) == 0 || string(data) == "null" {
		return true
	}
	return json.Unmarshal(data, v) == nil
}
