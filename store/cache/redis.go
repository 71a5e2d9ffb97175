package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCacheInterface is the L2 cache. Values are opaque bytes so they survive
// a round trip through Redis unchanged.
//
// Redis is OPTIONAL and only needed when several workers should share
// query vectors or the cache should survive restarts.
type RedisCacheInterface interface {
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// RedisCacheConfig holds the Redis connection configuration.
type RedisCacheConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DefaultTTL   time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisCacheConfig {
	return &RedisCacheConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "snapnote:",
		DefaultTTL:   30 * time.Minute,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// RedisConfigFromEnv creates Redis config from environment variables.
// Environment variables:
//   - SNAPNOTE_CACHE_REDIS_ADDR: Redis address (default: localhost:6379)
//   - SNAPNOTE_CACHE_REDIS_PASSWORD: Redis password (default: "")
//   - SNAPNOTE_CACHE_REDIS_DB: Redis DB number (default: 0)
//   - SNAPNOTE_CACHE_REDIS_PREFIX: Key prefix (default: "snapnote:")
func RedisConfigFromEnv() *RedisCacheConfig {
	config := DefaultRedisConfig()

	if addr := os.Getenv("SNAPNOTE_CACHE_REDIS_ADDR"); addr != "" {
		config.Addr = addr
	}
	if password := os.Getenv("SNAPNOTE_CACHE_REDIS_PASSWORD"); password != "" {
		config.Password = password
	}
	if db, err := strconv.Atoi(os.Getenv("SNAPNOTE_CACHE_REDIS_DB")); err == nil {
		config.DB = db
	}
	if prefix := os.Getenv("SNAPNOTE_CACHE_REDIS_PREFIX"); prefix != "" {
		config.KeyPrefix = prefix
	}

	return config
}

// IsRedisEnabled reports whether SNAPNOTE_CACHE_REDIS_ADDR is set.
func IsRedisEnabled() bool {
	return os.Getenv("SNAPNOTE_CACHE_REDIS_ADDR") != ""
}

// KeyHash returns the hex SHA-256 of the components joined by NUL.
func KeyHash(components ...string) string {
	h := sha256.Sum256([]byte(strings.Join(components, "\x00")))
	return hex.EncodeToString(h[:])
}

// RedisCache is a Redis-based cache implementation for L2 caching.
type RedisCache struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, config *RedisCacheConfig) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	slog.Info("Redis cache connected", "addr", config.Addr)

	return &RedisCache{
		client:     client,
		keyPrefix:  config.KeyPrefix,
		defaultTTL: config.DefaultTTL,
	}, nil
}

func (r *RedisCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return r.client.Set(ctx, r.fullKey(key), value, ttl).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.fullKey(key)).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) fullKey(key string) string {
	return r.keyPrefix + key
}

// NilRedisCache is a no-op RedisCacheInterface.
type NilRedisCache struct{}

// NewNilRedisCache creates a no-op Redis cache.
func NewNilRedisCache() *NilRedisCache {
	return &NilRedisCache{}
}

func (n *NilRedisCache) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (n *NilRedisCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (n *NilRedisCache) Delete(context.Context, string) error { return nil }

func (n *NilRedisCache) Close() error { return nil }
