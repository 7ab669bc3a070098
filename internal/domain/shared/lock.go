package shared

import (
	"context"
	"time"
)

// Lock is an exclusive, expiring lock on a single key.
// A Lock value is used by one holder: Acquire once, then Release.
type Lock interface {
	// Acquire tries to take the lock without blocking.
	// Returns false when another holder owns it.
	Acquire(ctx context.Context) (bool, error)

	// Release frees the lock if this holder still owns it
	Release(ctx context.Context) error
}

// Locker hands out locks keyed by name
type Locker interface {
	// NewLock returns an unacquired lock on key that expires after ttl once held
	NewLock(key string, ttl time.Duration) (Lock, error)
}
