package store

import (
	"context"
	"sync"

	"github.com/teemow/calconnect/internal/integration"
)

// Locker serializes work per (user, app type) inside one process.
// The zero value is ready to use.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// WithLock runs fn while holding the lock for the pair. It returns ctx.Err()
// if the context ends before the lock is acquired.
func (l *Locker) WithLock(ctx context.Context, userID string, appType integration.AppType, fn func(ctx context.Context) error) error {
	key := userID + "\x00" + string(appType)
	s := l.acquireSlot(key)
	defer l.releaseSlot(key)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}

func (l *Locker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]*slot)
	}
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) releaseSlot(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
