package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/possales/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// DefaultLockPrefix namespaces report locks in Redis
const DefaultLockPrefix = "pos:report:lock:"

// redisStore defines the operations used by RedisLock
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// clientStore adapts *redis.Client to redisStore
type clientStore struct {
	client *redis.Client
}

func (s clientStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s clientStore) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s clientStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// RedisLocker hands out Redis-backed locks shared by every server instance
type RedisLocker struct {
	store  redisStore
	prefix string
}

// NewRedisLocker creates a locker on an existing client
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return newRedisLocker(clientStore{client: client}, prefix)
}

func newRedisLocker(store redisStore, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = DefaultLockPrefix
	}
	return &RedisLocker{store: store, prefix: prefix}
}

// NewLock implements shared.Locker
func (l *RedisLocker) NewLock(key string, ttl time.Duration) (shared.Lock, error) {
	return NewRedisLock(l.store, l.prefix+key, ttl)
}

// RedisLock implements shared.Lock using Redis SETNX + TTL
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if the owner value still matches.
// A lock that expired and was taken by another holder is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}
