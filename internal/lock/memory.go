package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryManager is a keyed mutex with TTL expiry. A holder that dies
// without unlocking (panic swallowed upstream, goroutine leak) does not
// wedge its donor forever; the entry expires after ttl and the next
// TryLock succeeds.
type MemoryManager struct {
	mu    sync.Mutex
	held  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

// NewMemoryManager builds a manager whose locks expire after ttl.
func NewMemoryManager(ttl time.Duration) *MemoryManager {
	return &MemoryManager{
		held:  make(map[string]time.Time),
		ttl:   ttl,
		clock: time.Now,
	}
}

func (m *MemoryManager) TryLock(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expires, ok := m.held[key]; ok && m.clock().Before(expires) {
		return false, nil
	}
	m.held[key] = m.clock().Add(m.ttl)
	return true, nil
}

func (m *MemoryManager) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}
