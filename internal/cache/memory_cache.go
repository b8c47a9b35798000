// Package cache holds generated tool configurations for a bounded time.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// InMemoryCache provides a simple thread-safe in-memory cache with a TTL.
type InMemoryCache struct {
	store  map[string]cacheItem
	mutex  sync.RWMutex
	ttl    time.Duration
	logger *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	value      any
	expiration int64
}

// Option configures an InMemoryCache.
type Option func(*InMemoryCache)

// WithLogger sets the logger used for cache activity.
func WithLogger(l *slog.Logger) Option {
	return func(c *InMemoryCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCleanupInterval starts a background sweep of expired items every interval.
func WithCleanupInterval(interval time.Duration) Option {
	return func(c *InMemoryCache) {
		if interval > 0 {
			go c.cleanupLoop(interval)
		}
	}
}

// NewInMemoryCache creates a cache whose items live for ttl.
func NewInMemoryCache(ttl time.Duration, opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		store:  make(map[string]cacheItem),
		ttl:    ttl,
		logger: slog.Default(),
		stop:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get retrieves an item. Missing and expired items yield a NotFound error.
func (c *InMemoryCache) Get(ctx context.Context, key string) (any, error) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, found := c.store[key]
	if !found {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item not found", nil))
	}
	if time.Now().UnixNano() > item.expiration {
		c.logger.Debug("cache item expired", "key", key)
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item expired", nil))
	}
	return item.value, nil
}

// Set adds or replaces an item.
func (c *InMemoryCache) Set(ctx context.Context, key string, value any) error {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.store[key] = cacheItem{
		value:      value,
		expiration: time.Now().Add(c.ttl).UnixNano(),
	}
	c.logger.Debug("cache item set", "key", key)
	return nil
}

// Delete removes an item if present.
func (c *InMemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.store, key)
}

// Len returns the number of stored items, expired ones included until swept.
func (c *InMemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.store)
}

// Close stops the background sweep.
func (c *InMemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *InMemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemoryCache) sweep() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := time.Now().UnixNano()
	removed := 0
	for key, item := range c.store {
		if now > item.expiration {
			delete(c.store, key)
			removed++
		}
	}
	return removed
}
