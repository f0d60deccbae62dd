package worker

import (
	"math"
	"time"

	"tablebook/internal/config"
)

// RetryPolicy spaces out redelivery of an outbox task.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// RetryPolicyFromConfig maps the outbox section; zero fields keep the worker defaults.
func RetryPolicyFromConfig(cfg config.OutboxConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
	}
}

// Exhausted reports whether a task that failed attempt times goes to the
// dead-letter list instead of back to the queue.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return r.MaxRetries > 0 && attempt >= r.MaxRetries
}

// NextDelay is InitialDelay * BackoffFactor^(attempt-1), capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}
	n := max(attempt, 1) - 1

	d := time.Duration(float64(base) * math.Pow(factor, float64(n)))
	if d <= 0 || (r.MaxDelay > 0 && d > r.MaxDelay) {
		if r.MaxDelay > 0 {
			return r.MaxDelay
		}
		return base
	}
	return d
}
