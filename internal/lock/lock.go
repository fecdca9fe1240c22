// Package lock provides per-donor mutual exclusion for evaluation
// runs. A single-process deployment uses the in-memory manager; a
// multi-replica deployment uses Postgres advisory locks so only one
// replica evaluates a donor at a time.
package lock

import "context"

// Manager acquires and releases named locks. TryLock never blocks: it
// reports false when the lock is held elsewhere so callers can back off
// and retry.
type Manager interface {
	TryLock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}
