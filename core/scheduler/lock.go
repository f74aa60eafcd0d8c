package scheduler

import (
	"context"
	"sync"
	"time"
)

// Lock coordinates exclusive sweeps.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// MemoryLock serialises sweeps within one process. The TTL releases a
// lock whose holder never called Release.
type MemoryLock struct {
	mu      sync.Mutex
	ttl     time.Duration
	held    bool
	expires time.Time
	now     func() time.Time
}

func NewMemoryLock(ttl time.Duration) *MemoryLock {
	return &MemoryLock{ttl: ttl, now: time.Now}
}

func (l *MemoryLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if l.held && (l.ttl <= 0 || now.Before(l.expires)) {
		return false, nil
	}
	l.held = true
	l.expires = now.Add(l.ttl)
	return true, nil
}

func (l *MemoryLock) Release(context.Context) error {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
	return nil
}
