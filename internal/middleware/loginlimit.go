package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/duochat/chat-server-go/internal/audit"
	"github.com/duochat/chat-server-go/internal/httputil"
)

const (
	DefaultLoginMaxAttempts = 5
	DefaultLoginWindow      = time.Minute
	loginCleanupPeriod      = 5 * time.Minute
)

type loginAttempt struct {
	count       int
	windowStart time.Time
}

// LoginRateLimiter caps credential requests per client IP with a fixed window.
type LoginRateLimiter struct {
	mu          sync.Mutex
	attempts    map[string]*loginAttempt
	maxAttempts int
	window      time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

type LoginRateLimiterOption func(*LoginRateLimiter)

func WithLoginClock(now func() time.Time) LoginRateLimiterOption {
	return func(l *LoginRateLimiter) {
		l.now = now
	}
}

func NewLoginRateLimiter(maxAttempts int, window time.Duration, opts ...LoginRateLimiterOption) *LoginRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultLoginMaxAttempts
	}
	if window <= 0 {
		window = DefaultLoginWindow
	}
	l := &LoginRateLimiter{
		attempts:    make(map[string]*loginAttempt),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastCleanup = l.now()
	return l
}

// cleanup must be called with mu held.
func (l *LoginRateLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < loginCleanupPeriod {
		return
	}
	l.lastCleanup = now

	for ip, attempt := range l.attempts {
		if now.Sub(attempt.windowStart) > l.window {
			delete(l.attempts, ip)
		}
	}
}

// Allow records an attempt for ip and reports whether it is within the limit. When it is
// not, the returned duration is the time left in the current window.
func (l *LoginRateLimiter) Allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	attempt, exists := l.attempts[ip]
	if !exists || now.Sub(attempt.windowStart) > l.window {
		l.attempts[ip] = &loginAttempt{count: 1, windowStart: now}
		return true, 0
	}

	if attempt.count >= l.maxAttempts {
		return false, attempt.windowStart.Add(l.window).Sub(now)
	}

	attempt.count++
	return true, 0
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.ClientIP(r)

		allowed, retryAfter := l.Allow(ip)
		if !allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"scope": "login"},
			})
			seconds := int(retryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Too many login attempts. Please try again later.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
