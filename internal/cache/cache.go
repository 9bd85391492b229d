// Package cache provides a get-or-fetch cache with caller-supplied
// invalidation. One instance per process; never a package-level global.
package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Loader fetches the value for a key on a cache miss.
type Loader[V any] func(ctx context.Context, key string) (V, error)

type Cache[V any] struct {
	mu   sync.Mutex
	lru  *lru.Cache[string, V]
	load Loader[V]
}

func New[V any](size int, load Loader[V]) (*Cache[V], error) {
	inner, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: inner, load: load}, nil
}

// Get returns the cached value for key, fetching and storing it on a
// miss. Load errors are not cached.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()
	v, err := c.load(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.mu.Lock()
	c.lru.Add(key, v)
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops the cached value for key, if any.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	c.lru.Remove(key)
	c.mu.Unlock()
}

// Put stores a value directly, replacing any cached one.
func (c *Cache[V]) Put(key string, v V) {
	c.mu.Lock()
	c.lru.Add(key, v)
	c.mu.Unlock()
}
