package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/duochat/chat-server-go/internal/errors"
	"github.com/duochat/chat-server-go/internal/httputil"
	"github.com/duochat/chat-server-go/internal/service"
	"github.com/duochat/chat-server-go/internal/util"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/check/{username}", h.Check)
	return r
}

func (h *UserHandler) Check(w http.ResponseWriter, r *http.Request) {
	username, err := util.ValidateUsername(chi.URLParam(r, "username"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	exists, err := h.userService.Exists(r.Context(), username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("user lookup failed")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exists":   exists,
		"username": username,
	})
}
