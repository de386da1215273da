// Package cache holds fetched spot sets in memory under quantized spatial keys.
//
// Entries expire lazily: validity is checked on every Get and an expired entry
// is removed by the Get that finds it. There is no background sweep and no
// capacity bound.
package cache

import (
	"sync"
	"time"

	"github.com/1F47E/trip-spots/pkg/models"
)

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = 10 * time.Minute

// Clock returns the current time. Tests inject a controllable one.
type Clock func() time.Time

// Entry is one cached result set.
type Entry struct {
	Key       string
	Data      []models.Spot
	Timestamp time.Time
}

// Stats is a snapshot of cache counters. Entries counts expired entries
// that no Get has touched yet.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
	Expired uint64
}

// Cache is a TTL map from key to spots, safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	ttl     time.Duration
	now     Clock

	hits    uint64
	misses  uint64
	expired uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.now = clock
		}
	}
}

// New creates a cache. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a copy of the spots stored under key while the entry is valid.
func (c *Cache) Get(key string) ([]models.Spot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(entry.Timestamp) >= c.ttl {
		delete(c.entries, key)
		c.expired++
		c.misses++
		return nil, false
	}
	c.hits++
	return cloneSpots(entry.Data), true
}

// Set stores a copy of spots under key. A later Set for the same key wins.
func (c *Cache) Set(key string, spots []models.Spot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry{
		Key:       key,
		Data:      cloneSpots(spots),
		Timestamp: c.now(),
	}
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.hits, c.misses, c.expired = 0, 0, 0
}

// Age returns how long ago key was stored. It does not expire the entry.
func (c *Cache) Age(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return c.now().Sub(entry.Timestamp), true
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		Expired: c.expired,
	}
}

func cloneSpots(spots []models.Spot) []models.Spot {
	if spots == nil {
		return []models.Spot{}
	}
	out := make([]models.Spot, len(spots))
	copy(out, spots)
	return out
}
