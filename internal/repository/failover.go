package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tablebook/internal/domain"
)

const recheckAfter = time.Minute

// FailoverSlotLocker prefers the shared Redis locker and drops to the
// in-process one while Redis is unreachable. Contention (ErrLockTimeout)
// and cancellation never count as an outage.
type FailoverSlotLocker struct {
	primary   domain.SlotLocker
	fallback  domain.SlotLocker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSlotLocker(primary, fallback domain.SlotLocker, logger *zerolog.Logger) *FailoverSlotLocker {
	return &FailoverSlotLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (l *FailoverSlotLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	if l.isDown.Load() && time.Since(time.Unix(0, l.lastCheck.Load())) > recheckAfter {
		l.isDown.Store(false)
		l.logger.Info().Msg("Retrying primary slot locker")
	}

	if !l.isDown.Load() {
		release, err := l.primary.Acquire(ctx, key, ttl, wait)
		if err == nil || isContention(err) {
			return release, err
		}
		l.logger.Error().Err(err).Str("key", key).Msg("Primary slot locker failed, falling back to memory")
		l.isDown.Store(true)
		l.lastCheck.Store(time.Now().UnixNano())
	}

	return l.fallback.Acquire(ctx, key, ttl, wait)
}

func isContention(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
