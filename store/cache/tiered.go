package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// TieredCache implements a two-tier caching strategy:
// - L1: In-memory cache (fast, small, DEFAULT)
// - L2: Redis cache (moderate, shared, OPTIONAL)
//
// L2 failures are logged and treated as misses; a cache never fails its caller.
type TieredCache struct {
	l1    *Cache
	l2    RedisCacheInterface
	l2TTL time.Duration
}

// TieredCacheConfig holds the configuration for the tiered cache.
type TieredCacheConfig struct {
	L1MaxItems int           // Max items in L1 memory cache
	L1TTL      time.Duration // TTL for L1 cache entries
	L2TTL      time.Duration // TTL for L2 Redis cache entries
	// L2 is the shared cache; nil keeps the cache memory-only.
	L2 RedisCacheInterface
}

// DefaultTieredConfig returns the default tiered cache configuration (memory only).
func DefaultTieredConfig() *TieredCacheConfig {
	return &TieredCacheConfig{
		L1MaxItems: 1000,
		L1TTL:      30 * time.Minute,
		L2TTL:      24 * time.Hour,
	}
}

// NewTieredCache creates a tiered cache.
func NewTieredCache(config *TieredCacheConfig) *TieredCache {
	if config == nil {
		config = DefaultTieredConfig()
	}
	l2 := config.L2
	if l2 == nil {
		l2 = NewNilRedisCache()
	}
	return &TieredCache{
		l1: New(Config{
			DefaultTTL:      config.L1TTL,
			CleanupInterval: time.Minute,
			MaxItems:        config.L1MaxItems,
		}),
		l2:    l2,
		l2TTL: config.L2TTL,
	}
}

// Get returns the raw bytes for key, promoting L2 hits into L1.
func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, found := t.l1.Get(ctx, key); found {
		if data, ok := value.([]byte); ok {
			return data, true
		}
	}

	data, found, err := t.l2.Get(ctx, key)
	if err != nil {
		slog.Warn("L2 cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	t.l1.Set(ctx, key, data)
	return data, true
}

// Set stores raw bytes in both tiers.
func (t *TieredCache) Set(ctx context.Context, key string, data []byte) {
	t.l1.Set(ctx, key, data)
	if err := t.l2.SetWithTTL(ctx, key, data, t.l2TTL); err != nil {
		slog.Warn("L2 cache set failed", "key", key, "error", err)
	}
}

// Delete removes a value from both tiers.
func (t *TieredCache) Delete(ctx context.Context, key string) {
	t.l1.Delete(ctx, key)
	if err := t.l2.Delete(ctx, key); err != nil {
		slog.Warn("L2 cache delete failed", "key", key, "error", err)
	}
}

// GetVector returns a cached embedding.
func (t *TieredCache) GetVector(ctx context.Context, key string) ([]float32, bool) {
	data, ok := t.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil || len(vector) == 0 {
		slog.Warn("dropping undecodable cached vector", "key", key, "error", err)
		t.Delete(ctx, key)
		return nil, false
	}
	return vector, true
}

// SetVector caches an embedding.
func (t *TieredCache) SetVector(ctx context.Context, key string, vector []float32) {
	data, err := json.Marshal(vector)
	if err != nil {
		slog.Warn("failed to encode vector for cache", "key", key, "error", err)
		return
	}
	t.Set(ctx, key, data)
}

// Stats returns cache statistics.
func (t *TieredCache) Stats() map[string]any {
	_, nilL2 := t.l2.(*NilRedisCache)
	return map[string]any{
		"l1_size":    t.l1.Size(),
		"l2_enabled": !nilL2,
	}
}

// Close closes all cache connections.
func (t *TieredCache) Close() error {
	var errs []error
	if err := t.l2.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := t.l1.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Errorf("multiple errors: %v", errs)
	}
	return nil
}

// QueryVectorKey keys a query embedding by model and query text.
func QueryVectorKey(model, query string) string {
	return "qvec:" + KeyHash(model, query)
}
