package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockKeyPrefix = "audit:lock:"

// ErrLockTimeout is returned when a lock could not be acquired in time
var ErrLockTimeout = shared.NewDomainError("CONCURRENCY_CONFLICT", "Audit is busy, retry the request")

// RedisSessionLocker implements shared.Locker with a redis lease per key.
// The lease expires after ttl even if the holder dies.
type RedisSessionLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// NewRedisSessionLocker creates a locker. wait bounds how long Lock retries.
func NewRedisSessionLocker(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *RedisSessionLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSessionLocker{
		client: redislock.New(client),
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Lock obtains the lease for key, retrying with a linear backoff until wait elapses
func (l *RedisSessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lock, err := l.client.Obtain(ctx, lockKeyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// InMemorySessionLocker implements shared.Locker for a single process
type InMemorySessionLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
	wait  time.Duration
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewInMemorySessionLocker creates a locker whose Lock gives up after wait
func NewInMemorySessionLocker(wait time.Duration) *InMemorySessionLocker {
	return &InMemorySessionLocker{slots: make(map[string]*lockSlot), wait: wait}
}

// Lock blocks until key is free, ctx is done, or wait elapses
func (l *InMemorySessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(key, slot)
			})
		}, nil
	case <-timer.C:
		l.release(key, slot)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		l.release(key, slot)
		return nil, ctx.Err()
	}
}

func (l *InMemorySessionLocker) release(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

var (
	_ shared.Locker = (*RedisSessionLocker)(nil)
	_ shared.Locker = (*InMemorySessionLocker)(nil)
)
