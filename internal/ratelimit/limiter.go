// Package ratelimit throttles API clients and paces task submissions
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client key
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewLimiter creates a keyed limiter.
// requestsPerHour: sustained requests allowed per hour per key (e.g., 100)
// burst: max requests in a burst (e.g., 10)
func NewLimiter(requestsPerHour int, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerHour) / 3600.0),
		burst:    burst,
	}
}

// GetLimiter returns the bucket for key, creating it on first use
func (l *Limiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Allow reports whether key may make a request now
func (l *Limiter) Allow(key string) bool {
	return l.GetLimiter(key).Allow()
}

// Tokens returns the tokens currently available to key
func (l *Limiter) Tokens(key string) float64 {
	return l.GetLimiter(key).Tokens()
}

// Stagger spaces successive events by a fixed interval. The first Wait
// returns immediately.
type Stagger struct {
	limiter *rate.Limiter
}

// NewStagger creates a stagger; a non-positive interval never waits
func NewStagger(interval time.Duration) *Stagger {
	if interval <= 0 {
		return &Stagger{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Stagger{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next event may start or ctx ends
func (s *Stagger) Wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}
