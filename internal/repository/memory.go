package repository

import (
	"context"
	"sync"
	"time"
)

type memorySlot struct {
	ch   chan struct{}
	refs int // holder plus waiters
}

// MemorySlotLocker serializes writers inside one process. The ttl is not
// enforced: locks live until released. A key is forgotten once nobody holds
// or waits for it.
type MemorySlotLocker struct {
	mu    sync.Mutex
	slots map[string]*memorySlot
}

func NewMemorySlotLocker() *MemorySlotLocker {
	return &MemorySlotLocker{slots: make(map[string]*memorySlot)}
}

func (l *MemorySlotLocker) join(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &memorySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s.ch
}

func (l *MemorySlotLocker) leave(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs <= 0 {
		delete(l.slots, key)
	}
}

func (l *MemorySlotLocker) Acquire(ctx context.Context, key string, _, wait time.Duration) (func(), error) {
	ch := l.join(key)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-ch
				l.leave(key)
			})
		}, nil
	case <-ctx.Done():
		l.leave(key)
		return nil, ctx.Err()
	case <-timer.C:
		l.leave(key)
		return nil, ErrLockTimeout
	}
}
