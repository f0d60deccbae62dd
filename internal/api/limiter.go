package api

import (
	"sync"

	"golang.org/x/time/rate"

	"tablebook/internal/config"
)

const defaultBurst = 5

// RateLimiter hands out one token bucket per client key. It is shared by
// the HTTP and gRPC surfaces so a client has one budget across both.
type RateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rps      float64
	burst    int
}

func NewRateLimiter(cfg config.APIRateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimiter{rps: cfg.RPS, burst: burst}
}

// allow reports whether the client may proceed. A non-positive rps
// disables limiting.
func (l *RateLimiter) allow(key string) bool {
	if l == nil || l.rps <= 0 {
		return true
	}
	return l.getLimiter(key).Allow()
}

func (l *RateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(l.rps), l.burst)
	actual, _ := l.limiters.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}
