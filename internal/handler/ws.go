package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/duochat/chat-server-go/internal/chat"
	"github.com/duochat/chat-server-go/internal/config"
	"github.com/duochat/chat-server-go/internal/hub"
)

type WebSocketHandler struct {
	router   *chat.Router
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(router *chat.Router, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker accepts requests without an Origin header (non-browser clients) and
// browser requests from the allow-list. "*" allows any origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		return set[origin]
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("origin", r.Header.Get("Origin")).Msg("websocket upgrade failed")
		return
	}

	conn := h.router.Connect()
	log.Info().
		Str("connId", conn.ID()).
		Str("remoteAddr", r.RemoteAddr).
		Msg("websocket connection established")

	go h.writePump(ws, conn.Client())

	// The connection outlives any request-scoped deadline.
	h.readPump(context.WithoutCancel(r.Context()), ws, conn)
}

func (h *WebSocketHandler) readPump(ctx context.Context, ws *websocket.Conn, conn *chat.Connection) {
	defer func() {
		conn.Disconnect()
		ws.Close()
		log.Info().Str("connId", conn.ID()).Msg("websocket connection closed")
	}()

	ws.SetReadLimit(config.WSMaxFrameBytes)
	ws.SetReadDeadline(time.Now().Add(config.WSPongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(config.WSPongTimeout))
	})

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("connId", conn.ID()).Msg("websocket read error")
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(config.WSPongTimeout))

		conn.HandleFrame(ctx, frame)
	}
}

func (h *WebSocketHandler) writePump(ws *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case event := <-client.Events:
			if err := writeEvent(ws, event); err != nil {
				log.Debug().Err(err).Str("connId", client.ID).Msg("websocket write failed")
				return
			}

		case <-client.Done:
			flush(ws, client)
			ws.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes events queued before the client was closed, such as session-expired.
func flush(ws *websocket.Conn, client *hub.Client) {
	for {
		select {
		case event := <-client.Events:
			if err := writeEvent(ws, event); err != nil {
				return
			}
		default:
			return
		}
	}
}

func writeEvent(ws *websocket.Conn, event hub.Event) error {
	ws.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
	return ws.WriteJSON(event)
}
