package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/donor-eligibility-engine/internal/domain"
)

// ResilientEmbedder wraps an embedder with a circuit breaker, an
// in-process LRU cache and an optional Redis cache shared across
// instances. Lookup order is LRU, then Redis, then the remote service.
type ResilientEmbedder struct {
	inner      domain.Embedder
	breaker    *gobreaker.CircuitBreaker
	local      *lru.Cache[string, []float32]
	redis      *redis.Client
	defaultTTL time.Duration
	log        *logrus.Logger
}

type cachedVector struct {
	Vector   []float32 `json:"vector"`
	CachedAt time.Time `json:"cached_at"`
}

// NewResilientEmbedder builds the resilient wrapper. A nil or
// unreachable Redis is not fatal; the wrapper degrades to the local
// cache alone.
func NewResilientEmbedder(inner domain.Embedder, embCfg domain.EmbeddingConfig,
	cacheCfg domain.CacheConfig, log *logrus.Logger) (*ResilientEmbedder, error) {

	size := embCfg.LRUSize
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding LRU cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "Embedding",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	r := &ResilientEmbedder{
		inner:      inner,
		breaker:    breaker,
		local:      local,
		defaultTTL: cacheCfg.DefaultTTL,
		log:        log,
	}

	if cacheCfg.Enabled && cacheCfg.RedisURL != "" {
		opts, err := redis.ParseURL(cacheCfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts.PoolSize = cacheCfg.PoolSize
		opts.PoolTimeout = cacheCfg.PoolTimeout
		opts.MaxRetries = cacheCfg.MaxRetries

		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unavailable, embedding cache is local only")
			_ = client.Close()
		} else {
			r.redis = client
		}
	}

	return r, nil
}

// Embed returns the vector for text, served from cache when possible.
func (r *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	if vec, ok := r.local.Get(key); ok {
		return vec, nil
	}
	if vec, ok := r.redisGet(ctx, key); ok {
		r.local.Add(key, vec)
		return vec, nil
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Embed(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("embedding service unavailable (circuit breaker open)")
		}
		return nil, err
	}

	vec := result.([]float32)
	r.local.Add(key, vec)
	r.redisSet(ctx, key, vec)
	return vec, nil
}

// Counts exposes circuit breaker statistics for health reporting.
func (r *ResilientEmbedder) Counts() gobreaker.Counts {
	return r.breaker.Counts()
}

// State exposes the circuit breaker state for health reporting.
func (r *ResilientEmbedder) State() gobreaker.State {
	return r.breaker.State()
}

// Close releases the Redis connection if one was established.
func (r *ResilientEmbedder) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

func (r *ResilientEmbedder) redisGet(ctx context.Context, key string) ([]float32, bool) {
	if r.redis == nil {
		return nil, false
	}
	val, err := r.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		r.log.WithError(err).Warn("Embedding cache read failed")
		return nil, false
	}

	var cached cachedVector
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		r.redis.Del(ctx, key)
		return nil, false
	}
	return cached.Vector, true
}

func (r *ResilientEmbedder) redisSet(ctx context.Context, key string, vec []float32) {
	if r.redis == nil {
		return
	}
	ttl := r.defaultTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	payload, err := json.Marshal(cachedVector{Vector: vec, CachedAt: time.Now()})
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, key, payload, ttl).Err(); err != nil {
		r.log.WithError(err).Warn("Embedding cache write failed")
	}
}

func cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:snapshot:%x", hash[:16])
}
