package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the in-memory cache configuration.
type Config struct {
	// DefaultTTL is applied by Set. Zero means entries never expire.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are purged. Zero disables the janitor.
	CleanupInterval time.Duration
	// MaxItems bounds the cache size. Zero means unbounded.
	MaxItems int
}

type item struct {
	value     any
	expiresAt time.Time
}

func (i *item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// Cache is a concurrency-safe in-memory TTL cache.
type Cache struct {
	config Config
	data   sync.Map
	size   atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates an in-memory cache and starts its janitor.
func New(config Config) *Cache {
	c := &Cache{
		config: config,
		stop:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.janitor(config.CleanupInterval)
	}
	return c
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.purgeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) purgeExpired() {
	now := time.Now()
	c.data.Range(func(key, value any) bool {
		if value.(*item).expired(now) {
			c.remove(key)
		}
		return true
	})
}

func (c *Cache) remove(key any) {
	if _, loaded := c.data.LoadAndDelete(key); loaded {
		c.size.Add(-1)
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}
	it := v.(*item)
	if it.expired(time.Now()) {
		c.remove(key)
		return nil, false
	}
	return it.value, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores a value that expires after ttl.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	it := &item{value: value}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}
	if _, loaded := c.data.Swap(key, it); !loaded {
		c.size.Add(1)
	}
	if c.config.MaxItems > 0 && c.size.Load() > int64(c.config.MaxItems) {
		c.evict(key)
	}
}

// evict drops expired entries first, then the entry closest to expiry, never keep.
func (c *Cache) evict(keep string) {
	c.purgeExpired()
	for c.size.Load() > int64(c.config.MaxItems) {
		var victim any
		var victimExpiry time.Time
		c.data.Range(func(key, value any) bool {
			if key == keep {
				return true
			}
			exp := value.(*item).expiresAt
			if victim == nil || (!exp.IsZero() && (victimExpiry.IsZero() || exp.Before(victimExpiry))) {
				victim, victimExpiry = key, exp
			}
			return true
		})
		if victim == nil {
			return
		}
		c.remove(victim)
	}
}

// Delete removes a value.
func (c *Cache) Delete(_ context.Context, key string) {
	c.remove(key)
}

// Clear removes every value.
func (c *Cache) Clear(_ context.Context) {
	c.data.Range(func(key, _ any) bool {
		c.remove(key)
		return true
	})
}

// Size returns the number of stored entries, including not yet purged expired ones.
func (c *Cache) Size() int64 {
	return c.size.Load()
}

// Close stops the janitor.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}
