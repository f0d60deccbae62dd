package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	args := m.Called(ctx, key, ttl, wait)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func TestFailoverSlotLocker(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()
	noop := func() {}

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary := new(mockLocker)
		fallback := new(mockLocker)
		l := NewFailoverSlotLocker(primary, fallback, &logger)

		primary.On("Acquire", ctx, "k", time.Second, time.Second).Return(noop, nil)
		release, err := l.Acquire(ctx, "k", time.Second, time.Second)
		require.NoError(t, err)
		assert.NotNil(t, release)
		fallback.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ContentionIsNotOutage", func(t *testing.T) {
		primary := new(mockLocker)
		fallback := new(mockLocker)
		l := NewFailoverSlotLocker(primary, fallback, &logger)

		primary.On("Acquire", ctx, "k", time.Second, time.Second).Return(nil, ErrLockTimeout)
		_, err := l.Acquire(ctx, "k", time.Second, time.Second)
		assert.ErrorIs(t, err, ErrLockTimeout)
		assert.False(t, l.isDown.Load())
		fallback.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FallbackOnOutage", func(t *testing.T) {
		primary := new(mockLocker)
		fallback := new(mockLocker)
		l := NewFailoverSlotLocker(primary, fallback, &logger)

		primary.On("Acquire", ctx, "k", time.Second, time.Second).Return(nil, errors.New("connection refused")).Once()
		fallback.On("Acquire", ctx, "k", time.Second, time.Second).Return(noop, nil)

		_, err := l.Acquire(ctx, "k", time.Second, time.Second)
		require.NoError(t, err)
		assert.True(t, l.isDown.Load())

		// stays on the fallback until the recheck interval passes
		_, err = l.Acquire(ctx, "k", time.Second, time.Second)
		require.NoError(t, err)
		primary.AssertNumberOfCalls(t, "Acquire", 1)
		fallback.AssertNumberOfCalls(t, "Acquire", 2)
	})

	t.Run("RecoversAfterRecheck", func(t *testing.T) {
		primary := new(mockLocker)
		fallback := new(mockLocker)
		l := NewFailoverSlotLocker(primary, fallback, &logger)

		l.isDown.Store(true)
		l.lastCheck.Store(time.Now().Add(-2 * recheckAfter).UnixNano())
		primary.On("Acquire", ctx, "k", time.Second, time.Second).Return(noop, nil)

		_, err := l.Acquire(ctx, "k", time.Second, time.Second)
		require.NoError(t, err)
		assert.False(t, l.isDown.Load())
		fallback.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
