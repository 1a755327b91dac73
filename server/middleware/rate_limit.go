package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles conversation turns per user. Every turn costs at
// least one language-model call, so the limit protects the upstream quota
// as much as the service itself.
type RateLimiter struct {
	mu       sync.Mutex
	limits   map[string]*entry
	perUser  rate.Limit
	burst    int
	maxIdle  time.Duration
	lastScan time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute turns per user with
// the given burst.
func NewRateLimiter(perMinute int, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 5
	}
	return &RateLimiter{
		limits:  make(map[string]*entry),
		perUser: rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		maxIdle: 30 * time.Minute,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	// Drop limiters for users idle longer than maxIdle, at most once a minute.
	if now.Sub(rl.lastScan) > time.Minute {
		for k, e := range rl.limits {
			if now.Sub(e.lastSeen) > rl.maxIdle {
				delete(rl.limits, k)
			}
		}
		rl.lastScan = now
	}

	if e, ok := rl.limits[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	e := &entry{limiter: rate.NewLimiter(rl.perUser, rl.burst), lastSeen: now}
	rl.limits[key] = e
	return e.limiter
}

// Allow reports whether a turn from the given user may proceed now.
func (rl *RateLimiter) Allow(user string) bool {
	return rl.getLimiter(user).Allow()
}

// Wait blocks until the user's next turn is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, user string) error {
	return rl.getLimiter(user).Wait(ctx)
}
