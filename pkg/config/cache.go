package config

import (
	"sync"
	"time"
)

// CacheTTL is how long a resolved configuration stays valid (spec §4.1
// "Caching... with a 5-minute TTL").
const CacheTTL = 5 * time.Minute

// cacheEntry pairs a cached result with the time it was stored.
type cacheEntry struct {
	result    ResolveResult
	storedAt  time.Time
}

// Cache holds resolved configurations keyed by (organisation, team,
// template), safe under concurrent access (spec §4.1, §5 "read-mostly
// map guarded by a readers-writer lock"). Invalidation is TTL-expiry
// only — there is no manual Invalidate, matching spec §4.1's "invalidation
// is manual and via TTL expiry only" read as: callers never reach in and
// evict; the cache self-expires entries on read.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Key builds the cache key for (organisation, team, template).
func Key(org, team, template string) string {
	return org + "\x00" + team + "\x00" + template
}

// Get returns the cached result for key if present and not expired.
func (c *Cache) Get(key string) (ResolveResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return ResolveResult{}, false
	}
	if c.now().Sub(entry.storedAt) > CacheTTL {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return ResolveResult{}, false
	}
	return entry.result, true
}

// Put stores result under key, stamped with the current time.
func (c *Cache) Put(key string, result ResolveResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, storedAt: c.now()}
}

// Len reports the number of entries currently stored, expired or not;
// used only by tests to assert eviction behaviour.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
