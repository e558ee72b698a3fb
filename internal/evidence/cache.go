package evidence

import (
	"sync"
	"time"
)

// CacheKey identifies one aggregation result. AsOf is truncated by the
// caller so repeated scoring runs within the same hour share entries.
type CacheKey struct {
	TenantID  string
	BuyerID   string
	ClusterID string
	AsOf      time.Time
}

type cacheEntry struct {
	ev        Evidence
	expiresAt time.Time
}

// Cache is an explicit, injectable memo of aggregation results with a TTL.
// It is safe for concurrent use across tenants; keys embed the tenant id so
// entries can never leak between tenants.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[CacheKey]cacheEntry
	clock   func() time.Time
}

// NewCache creates a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[CacheKey]cacheEntry),
		clock:   time.Now,
	}
}

// Get returns the cached evidence for key, if present and unexpired.
func (c *Cache) Get(key CacheKey) (Evidence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Evidence{}, false
	}
	if c.clock().After(e.expiresAt) {
		delete(c.entries, key)
		return Evidence{}, false
	}
	return e.ev, true
}

// Put stores evidence for key.
func (c *Cache) Put(key CacheKey, ev Evidence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{ev: ev, expiresAt: c.clock().Add(c.ttl)}
}

// PurgeExpired drops expired entries and returns how many were removed.
func (c *Cache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	var n int
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
