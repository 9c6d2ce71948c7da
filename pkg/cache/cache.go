package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// Store is the byte-oriented cache shared by the idempotency and reputation layers.
// shared/redis provides the networked implementation.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Item represents a cached item with expiration
type Item struct {
	Value      []byte
	Expiration int64
}

// Expired checks if the cache item has expired
func (item Item) Expired(now time.Time) bool {
	if item.Expiration == 0 {
		return false
	}
	return now.UnixNano() > item.Expiration
}

// Cache is a thread-safe in-memory Store with expiration
type Cache struct {
	items           map[string]Item
	mu              sync.RWMutex
	cleanupInterval time.Duration
	maxItems        int
	now             func() time.Time
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewCache creates a cache holding at most maxItems entries (0 = unbounded)
// and sweeping expired entries every cleanupInterval (0 = never).
func NewCache(maxItems int, cleanupInterval time.Duration) *Cache {
	cache := &Cache{
		items:           make(map[string]Item),
		cleanupInterval: cleanupInterval,
		maxItems:        maxItems,
		now:             time.Now,
		stop:            make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go cache.startCleanupTimer()
	}

	return cache
}

// Get retrieves an item from the cache
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || item.Expired(c.now()) {
		return nil, ErrMiss
	}
	return item.Value, nil
}

// Set adds an item to the cache with a specific expiration time
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
	return nil
}

// SetNX stores the value only when the key is missing or expired
func (c *Cache) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found && !item.Expired(c.now()) {
		return false, nil
	}
	c.setLocked(key, value, ttl)
	return true, nil
}

func (c *Cache) setLocked(key string, value []byte, ttl time.Duration) {
	var exp int64
	if ttl > 0 {
		exp = c.now().Add(ttl).UnixNano()
	}

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.evictOldest()
	}

	c.items[key] = Item{Value: value, Expiration: exp}
}

// Delete removes an item from the cache
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// Ping always succeeds for the in-memory store
func (c *Cache) Ping(context.Context) error { return nil }

// Count returns the number of items in the cache (including expired items)
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) startCleanupTimer() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.deleteExpired()
		}
	}
}

func (c *Cache) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, v := range c.items {
		if v.Expired(now) {
			delete(c.items, k)
		}
	}
}

// evictOldest removes the entry closest to expiry; entries without expiry go last
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestExp int64
	first := true

	for k, v := range c.items {
		exp := v.Expiration
		if exp == 0 {
			exp = 1<<63 - 1
		}
		if first || exp < oldestExp {
			oldestKey, oldestExp, first = k, exp, false
		}
	}

	if !first {
		delete(c.items, oldestKey)
	}
}
