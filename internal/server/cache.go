package server

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value    string
	storedAt time.Time
}

// recommendationCache is a bounded in-memory cache. A zero ttl keeps
// entries until they are evicted for space; the oldest entry goes first.
type recommendationCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newRecommendationCache(ttl time.Duration, maxSize int) *recommendationCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &recommendationCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *recommendationCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.remove(key)
		return "", false
	}
	return e.value, true
}

func (c *recommendationCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.remove(key)
	}
	for len(c.order) >= c.maxSize {
		c.remove(c.order[0])
	}
	c.entries[key] = cacheEntry{value: value, storedAt: c.now()}
	c.order = append(c.order, key)
}

func (c *recommendationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// remove must be called with mu held.
func (c *recommendationCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
