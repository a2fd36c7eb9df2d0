package application

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// defaultRemaining is assumed when the host has not reported a quota.
	defaultRemaining = 5000

	// lowQuotaThreshold triggers a warning log when the reported remaining
	// quota drops below it.
	lowQuotaThreshold = 100
)

// rateState mirrors the host's rate-limit bookkeeping for one credential.
type rateState struct {
	remaining int
	reset     time.Time
}

// RateLimiter tracks remaining API quota and reset time per credential,
// derived from GitHub's rate-limit response headers. The host's published
// quota is authoritative: every response overwrites the stored state
// wholesale, and the limiter never computes its own estimate.
type RateLimiter struct {
	mu    sync.Mutex
	creds map[string]rateState
	now   func() time.Time
}

// NewRateLimiter creates an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		creds: make(map[string]rateState),
		now:   time.Now,
	}
}

// IsRateLimited reports whether calls for the credential should be held
// back: the last reported quota is nearly exhausted and the recorded reset
// instant is still in the future. A credential never observed is not
// limited.
func (l *RateLimiter) IsRateLimited(credential string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.creds[credential]
	if !ok {
		return false
	}
	return state.remaining < lowQuotaThreshold && l.now().Before(state.reset)
}

// UpdateFromHeaders records the quota reported by X-RateLimit-Remaining and
// X-RateLimit-Reset (epoch seconds). Missing or malformed values default to
// a full quota and epoch zero. Warns when the remaining quota runs low.
func (l *RateLimiter) UpdateFromHeaders(credential string, headers http.Header) {
	remaining := defaultRemaining
	if v := headers.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = n
		}
	}

	var reset time.Time
	if v := headers.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			reset = time.Unix(epoch, 0)
		}
	}

	l.mu.Lock()
	l.creds[credential] = rateState{remaining: remaining, reset: reset}
	l.mu.Unlock()

	if remaining < lowQuotaThreshold {
		slog.Warn("github rate limit low",
			"credential", credential,
			"remaining", remaining,
			"reset_in", time.Until(reset).Round(time.Second),
		)
	}
}

// Remaining returns the last reported remaining quota for the credential,
// or the full default quota if never observed.
func (l *RateLimiter) Remaining(credential string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.creds[credential]
	if !ok {
		return defaultRemaining
	}
	return state.remaining
}
