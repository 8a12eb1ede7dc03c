package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/duochat/chat-server-go/internal/audit"
	apperrors "github.com/duochat/chat-server-go/internal/errors"
	"github.com/duochat/chat-server-go/internal/httputil"
	"github.com/duochat/chat-server-go/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Routes returns the handlers that issue sessions. Logout and Validate are mounted
// separately so the login rate limit does not apply to them.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	return r
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.authService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		logInternal(err, "register failed")
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventRegister, Username: result.Username})
	writeJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		logInternal(err, "login failed")
		if apperrors.GetCode(err) == apperrors.ErrCodeUnauthorized {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure, Username: req.Username})
		}
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess, Username: result.Username})
	writeJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := httputil.BearerToken(r)
	if token != "" {
		if session, err := h.authService.Validate(token); err == nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout, Username: session.Username})
		}
		h.authService.Logout(token)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	session, err := h.authService.Validate(httputil.BearerToken(r))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"valid": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    true,
		"username": session.Username,
	})
}

// logInternal records failures that are not the caller's fault.
func logInternal(err error, msg string) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInternal, apperrors.ErrCodeDatabase:
		log.Error().Err(err).Msg(msg)
	}
}
