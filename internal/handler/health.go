package handler

import (
	"net/http"
	"time"

	"github.com/duochat/chat-server-go/internal/chat"
)

type statsSource interface {
	Stats() chat.Stats
}

type HealthHandler struct {
	stats statsSource
	now   func() time.Time
}

func NewHealthHandler(stats statsSource) *HealthHandler {
	return &HealthHandler{stats: stats, now: time.Now}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
		"stats":     h.stats.Stats(),
	})
}
