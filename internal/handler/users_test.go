package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/duochat/chat-server-go/internal/service"
)

func TestUserHandler_Check(t *testing.T) {
	repo := newMemoryUserRepo("bob")
	r := chi.NewRouter()
	r.Mount("/api/users", NewUserHandler(service.NewUserService(repo, 4)).Routes())

	t.Run("existing user, case insensitive", func(t *testing.T) {
		rec, body := doJSON(t, r, "GET", "/api/users/check/BOB", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["exists"])
		assert.Equal(t, "bob", body["username"])
	})

	t.Run("unknown user", func(t *testing.T) {
		rec, body := doJSON(t, r, "GET", "/api/users/check/carol", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["exists"])
	})

	t.Run("invalid username", func(t *testing.T) {
		rec, body := doJSON(t, r, "GET", "/api/users/check/ab", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username must be at least 3 characters", body["error"])
	})

	t.Run("directory failure", func(t *testing.T) {
		repo.err = errors.New("timeout")
		defer func() { repo.err = nil }()

		rec, _ := doJSON(t, r, "GET", "/api/users/check/bob", "", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
