// Package cache provides an in-process TTL cache for serialized API
// responses. It is safe for concurrent use.
package cache

import (
	"sync"
	"time"
)

// DefaultCleanupInterval is how often the janitor sweeps expired
// entries.
const DefaultCleanupInterval = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Stats is a point-in-time summary of cache occupancy.
type Stats struct {
	Size    int `json:"size"`
	Valid   int `json:"valid_entries"`
	Expired int `json:"expired_entries"`
}

// Cache stores byte payloads with a fixed TTL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds a Cache with the given entry TTL and starts the
// background janitor. cleanupInterval <= 0 uses the default.
func New(ttl, cleanupInterval time.Duration) *Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go c.janitor(cleanupInterval)
	return c
}

// Get returns the cached payload for key. Expired entries are removed
// on access.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the cache TTL. The value is copied.
func (c *Cache) Set(key string, value []byte) {
	buf := make([]byte, len(value))
	copy(buf, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:     buf,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes one entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats reports cache occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	stats := Stats{Size: len(c.entries)}
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			stats.Valid++
		} else {
			stats.Expired++
		}
	}
	return stats
}

// Close stops the janitor. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
