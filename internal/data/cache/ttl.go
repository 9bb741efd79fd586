package cache

import (
	"sync"
	"time"
)

// TTLCache is a small keyed cache with time-based expiration. Each source in
// a fallback chain owns one, replacing ad-hoc package-level caches with an
// object that carries its TTL and last-fetch bookkeeping explicitly.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	stats   Stats
}

type entry struct {
	value   interface{}
	fetched time.Time
	expires time.Time
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// NewTTLCache creates a cache whose entries live for ttl.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
}

// Get returns the cached value for key if present and fresh.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.value, true
}

// Set stores value under key for the cache's TTL.
func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[key] = &entry{
		value:   value,
		fetched: now,
		expires: now.Add(c.ttl),
	}
}

// LastFetched returns when key was last stored, if ever.
func (c *TTLCache) LastFetched(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.fetched, true
}

// Stats returns hit/miss counts and the live entry count.
func (c *TTLCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	now := time.Now()
	for _, e := range c.entries {
		if now.Before(e.expires) {
			s.Entries++
		}
	}
	return s
}

// Clear drops all entries.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}
