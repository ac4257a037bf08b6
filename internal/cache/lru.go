// Package cache holds the bounded memoization used by the analysis engine.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the number of entries kept before the least recently
// used one is evicted.
const DefaultCapacity = 500

// LRU is a fixed-capacity map that evicts the least recently used key.
// Get and Add both count as a use. Safe for concurrent use.
type LRU[K comparable, V any] struct {
	inner *lru.Cache[K, V]
}

func NewLRU[K comparable, V any](capacity int) (*LRU[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	inner, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRU[K, V]{inner: inner}, nil
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	return c.inner.Get(key)
}

// Add stores value under key and reports whether an older entry was evicted.
func (c *LRU[K, V]) Add(key K, value V) bool {
	return c.inner.Add(key, value)
}

// Contains checks for key without touching its recency.
func (c *LRU[K, V]) Contains(key K) bool {
	return c.inner.Contains(key)
}

func (c *LRU[K, V]) Len() int {
	return c.inner.Len()
}

func (c *LRU[K, V]) Purge() {
	c.inner.Purge()
}
