package cache

import (
	"fmt"

	"github.com/possales/backend/internal/domain/shared"
	"github.com/possales/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LockerFactory creates report lockers based on configuration
type LockerFactory struct {
	reportConfig          config.ReportConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(config.RedisConfig) (*redis.Client, error)
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory locker when Redis is unavailable.
// Default is false.
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(reportCfg config.ReportConfig, redisCfg config.RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		reportConfig: reportCfg,
		redisConfig:  redisCfg,
		logger:       zap.NewNop(),
		connect:      NewRedisClient,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateLocker creates the locker named by report.lock_backend.
// The returned close function releases the Redis connection, if any.
func (f *LockerFactory) CreateLocker() (shared.Locker, func() error, error) {
	noop := func() error { return nil }

	switch f.reportConfig.LockBackend {
	case config.LockBackendMemory, "":
		f.logger.Info("using in-memory report locks")
		return NewMemoryLocker(), noop, nil
	case config.LockBackendRedis:
		client, err := f.connect(f.redisConfig)
		if err == nil {
			f.logger.Info("using Redis report locks",
				zap.String("addr", fmt.Sprintf("%s:%d", f.redisConfig.Host, f.redisConfig.Port)))
			return NewRedisLocker(client, DefaultLockPrefix), client.Close, nil
		}
		if !f.allowInMemoryFallback {
			return nil, nil, fmt.Errorf("redis required for report locks but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory report locks. "+
			"Concurrent generations on different instances will not be serialized.",
			zap.Error(err),
		)
		return NewMemoryLocker(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported lock backend %q", f.reportConfig.LockBackend)
	}
}
