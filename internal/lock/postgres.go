package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// lockConn is the slice of *pgxpool.Conn the manager needs. Advisory
// locks are session scoped, so the unlock must run on the same
// connection that acquired; routing either call through the pool would
// land them on arbitrary sessions.
type lockConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
}

// PostgresManager maps lock keys onto Postgres advisory locks, pinning
// one pooled connection per held key so acquire and release share a
// session. A crashed holder's lock is released when its connection
// drops, so no sweeper is needed.
type PostgresManager struct {
	acquire func(ctx context.Context) (lockConn, error)
	log     *logrus.Logger

	mu   sync.Mutex
	held map[string]lockConn
}

func NewPostgresManager(pool *pgxpool.Pool, log *logrus.Logger) *PostgresManager {
	return &PostgresManager{
		acquire: func(ctx context.Context) (lockConn, error) {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		log:  log,
		held: make(map[string]lockConn),
	}
}

// advisoryKey hashes the string key into the bigint keyspace
// pg_try_advisory_lock expects.
func advisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func (m *PostgresManager) TryLock(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	_, holding := m.held[key]
	m.mu.Unlock()
	if holding {
		// this process already holds the key; no round trip needed
		return false, nil
	}

	conn, err := m.acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquiring connection for lock %s: %w", key, err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", advisoryKey(key)).Scan(&acquired); err != nil {
		conn.Release()
		return false, fmt.Errorf("acquiring advisory lock for %s: %w", key, err)
	}
	if !acquired {
		conn.Release()
		m.log.WithField("key", key).Debug("Advisory lock held elsewhere")
		return false, nil
	}

	m.mu.Lock()
	m.held[key] = conn
	m.mu.Unlock()
	return true, nil
}

func (m *PostgresManager) Unlock(ctx context.Context, key string) error {
	m.mu.Lock()
	conn, ok := m.held[key]
	delete(m.held, key)
	m.mu.Unlock()
	if !ok {
		m.log.WithField("key", key).Warn("Unlock for a key this manager does not hold")
		return nil
	}
	defer conn.Release()

	var released bool
	if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", advisoryKey(key)).Scan(&released); err != nil {
		return fmt.Errorf("releasing advisory lock for %s: %w", key, err)
	}
	if !released {
		m.log.WithField("key", key).Warn("Advisory lock was not held by this session")
	}
	return nil
}
