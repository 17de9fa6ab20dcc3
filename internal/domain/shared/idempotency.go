package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of operations that already committed, so that
// retried submissions can short-circuit before touching the database.
type IdempotencyStore interface {
	// MarkProcessed records key with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if key has been recorded
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}

// Locker serializes work on a named resource across processes
type Locker interface {
	// Lock blocks until the named lock is held or ctx is done.
	// The returned function releases the lock.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
