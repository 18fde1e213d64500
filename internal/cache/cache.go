package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	SourceCache = "cache"
	SourceRPC   = "rpc"
)

type item[V any] struct {
	val       V
	expiresAt time.Time
}

// Cache is a TTL cache that coalesces concurrent misses per key.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]item[V]
	ttl   time.Duration
	group singleflight.Group
}

func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{items: make(map[string]item[V]), ttl: ttl}
}

// GetOrFetch returns a live cached value, or runs fetch once for all
// concurrent callers of the same key and stores the result. Errors are not
// cached. The second return value is SourceCache or SourceRPC.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, string, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(it.expiresAt) {
		return it.val, SourceCache, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[key] = item[V]{val: v, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, "", err
	}
	return res.(V), SourceRPC, nil
}

// Invalidate drops key so the next read goes to the fetcher.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	c.group.Forget(key)
}

// Len returns the number of items in the cache (for tests).
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
