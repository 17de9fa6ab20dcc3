package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Coordination bundles the cross-request primitives the audit service needs
type Coordination struct {
	Idempotency shared.IdempotencyStore
	Locker      shared.Locker
	// Backend is "redis" or "memory"
	Backend string

	client *redis.Client
}

// Close releases the idempotency store and the redis client, if any
func (c *Coordination) Close() error {
	var errs []error
	if c.Idempotency != nil {
		errs = append(errs, c.Idempotency.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Ping checks the redis connection; in-memory coordination is always reachable
func (c *Coordination) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// NewCoordination builds redis-backed coordination when redis is enabled.
// When redis is unreachable the in-memory variants are used unless the app
// runs in production, where a shared store is required.
func NewCoordination(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Coordination, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Redis.Enabled {
		client, err := NewRedisClient(ctx, &cfg.Redis)
		if err == nil {
			logger.Info("Using redis for scan idempotency and session locks", zap.String("addr", cfg.Redis.Addr()))
			return &Coordination{
				Idempotency: NewRedisIdempotencyStore(client, ""),
				Locker:      NewRedisSessionLocker(client, cfg.Audit.LockTTL, cfg.Audit.LockWait, logger),
				Backend:     "redis",
				client:      client,
			}, nil
		}
		if cfg.App.Env == "production" {
			return nil, fmt.Errorf("redis is required in production: %w", err)
		}
		logger.Warn("Redis unavailable, falling back to in-memory coordination; "+
			"scan writes are only serialized within this process", zap.Error(err))
	}

	return &Coordination{
		Idempotency: NewInMemoryIdempotencyStore(5 * time.Minute),
		Locker:      NewInMemorySessionLocker(cfg.Audit.LockWait),
		Backend:     "memory",
	}, nil
}
