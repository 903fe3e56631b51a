package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces a per-client requests-per-minute window.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	clients           map[string]*ClientUsage
	lastPrune         time.Time

	now func() time.Time
}

// ClientUsage tracks the current window for a client/IP.
type ClientUsage struct {
	requests    int
	windowStart time.Time
}

// NewRateLimiter creates a limiter. A limit <= 0 allows everything.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit records a request from clientID and reports whether it is
// allowed.
func (rl *RateLimiter) CheckRateLimit(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.pruneExpired(now)
	usage, ok := rl.clients[clientID]
	if !ok || now.Sub(usage.windowStart) >= time.Minute {
		usage = &ClientUsage{windowStart: now}
		rl.clients[clientID] = usage
	}

	if rl.requestsPerMinute > 0 && usage.requests >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.windowStart),
		}
	}
	usage.requests++
	return nil
}

// pruneExpired drops clients whose window has ended, at most once a minute,
// so rotating client IDs cannot grow the map without bound.
func (rl *RateLimiter) pruneExpired(now time.Time) {
	if now.Sub(rl.lastPrune) < time.Minute {
		return
	}
	rl.lastPrune = now
	for id, usage := range rl.clients {
		if now.Sub(usage.windowStart) >= time.Minute {
			delete(rl.clients, id)
		}
	}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}
