package chain

import (
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/Code-Hex/go-generics-cache/policy/lru"
)

// Cache is a typed LRU with per-entry expiration, small enough to sit in
// front of every RPC read.
type Cache[K comparable, V any] struct {
	cache *cache.Cache[K, V]
}

func NewLRUCache[K comparable, V any](size int) Cache[K, V] {
	return Cache[K, V]{
		cache: cache.New(cache.AsLRU[K, V](lru.WithCapacity(size))),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.cache.Get(key)
}

func (c *Cache[K, V]) Set(key K, val V, ttl time.Duration) {
	c.cache.Set(key, val, cache.WithExpiration(ttl))
}

func (c *Cache[K, V]) Delete(key K) {
	c.cache.Delete(key)
}
