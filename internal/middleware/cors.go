package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization"
	corsMaxAge       = "600"
)

// CORSMiddleware admits browser requests from an allow-list of origins. Requests without
// an Origin header pass through untouched. "*" in the list allows every origin.
type CORSMiddleware struct {
	allowed  map[string]bool
	allowAny bool
}

func NewCORSMiddleware(origins []string) *CORSMiddleware {
	m := &CORSMiddleware{allowed: make(map[string]bool, len(origins))}
	for _, origin := range origins {
		if origin == "*" {
			m.allowAny = true
			continue
		}
		m.allowed[origin] = true
	}
	return m
}

func (m *CORSMiddleware) Allowed(origin string) bool {
	return m.allowAny || m.allowed[origin]
}

func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !m.Allowed(origin) {
			log.Ctx(r.Context()).Warn().Str("origin", origin).Msg("origin not allowed")
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "Origin not allowed",
			})
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
