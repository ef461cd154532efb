// Package cache is a small LRU cache for compiled SQL text, grounded
// directly on the teacher's core/cache.go: a fixed-size two-queue LRU
// keyed by a caller-supplied string (there, a GraphQL query's hash;
// here, a compiled Query's cache key from internal/ir).
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dosco-labs/relq/internal/rerr"
)

const defaultSize = 5000

// Cache holds compiled SQL text (or any other caller-chosen value)
// keyed by string. The zero value is not usable; use New.
type Cache[V any] struct {
	cache *lru.TwoQueueCache[string, V]
}

// New builds a Cache holding at most size entries. size <= 0 uses the
// teacher's own default of 5000.
func New[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		size = defaultSize
	}
	c, err := lru.New2Q[string, V](size)
	if err != nil {
		return nil, rerr.New(rerr.DriverError, "cache initialization failed: %v", err)
	}
	return &Cache[V]{cache: c}, nil
}

// Get returns the cached value for key, if present.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.cache.Get(key)
}

// Set stores val under key, evicting the least recently used entry if
// the cache is at capacity.
func (c *Cache[V]) Set(key string, val V) {
	c.cache.Add(key, val)
}

// Purge empties the cache.
func (c *Cache[V]) Purge() {
	c.cache.Purge()
}

// Len returns the number of entries currently cached.
func (c *Cache[V]) Len() int {
	return c.cache.Len()
}
