package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/possales/backend/internal/domain/shared"
)

type holder struct {
	owner     string
	expiresAt time.Time
}

// MemoryLocker hands out process-local locks.
// It only serializes generations inside one server process.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]holder
	clock func() time.Time
}

// NewMemoryLocker creates a new MemoryLocker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]holder),
		clock: time.Now,
	}
}

// NewLock implements shared.Locker
func (m *MemoryLocker) NewLock(key string, ttl time.Duration) (shared.Lock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	return &memoryLock{locker: m, key: key, ttl: ttl}, nil
}

func (m *MemoryLocker) acquire(key, owner string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if h, ok := m.held[key]; ok && now.Before(h.expiresAt) {
		return false
	}
	m.held[key] = holder{owner: owner, expiresAt: now.Add(ttl)}
	return true
}

func (m *MemoryLocker) release(key, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.held[key]; ok && h.owner == owner {
		delete(m.held, key)
	}
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	ttl    time.Duration
	owner  string
}

func (l *memoryLock) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	owner := uuid.NewString()
	if !l.locker.acquire(l.key, owner, l.ttl) {
		return false, nil
	}
	l.owner = owner
	return true, nil
}

func (l *memoryLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	l.locker.release(l.key, l.owner)
	l.owner = ""
	return nil
}
