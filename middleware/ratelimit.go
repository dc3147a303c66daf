// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long a client may stay silent before its bucket is
// forgotten. A forgotten client starts again with a full burst.
const limiterIdle = 10 * time.Minute

// RateLimiter throttles requests per client IP with a token bucket.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	*rate.Limiter
	seen time.Time
}

// NewRateLimiter allows perSecond requests per client with the given burst.
// A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     limiterIdle,
		now:      time.Now,
		limiters: make(map[string]*clientLimiter),
	}
}

// Allow reports whether the client may make a request now.
func (rl *RateLimiter) Allow(client string) bool {
	if rl.limit <= 0 {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	if now.Sub(rl.lastSweep) >= rl.idle {
		rl.sweep(now)
	}
	l, ok := rl.limiters[client]
	if !ok {
		l = &clientLimiter{Limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[client] = l
	}
	l.seen = now
	rl.mu.Unlock()

	return l.AllowN(now, 1)
}

// sweep drops clients idle for longer than rl.idle. rl.mu must be held.
func (rl *RateLimiter) sweep(now time.Time) {
	for client, l := range rl.limiters {
		if now.Sub(l.seen) > rl.idle {
			delete(rl.limiters, client)
		}
	}
	rl.lastSweep = now
}

// Limit rejects requests over the client's budget with 429.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			ErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
