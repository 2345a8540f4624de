package cache

import (
	"context"
	"sync"
	"time"

	"github.com/reviewradar/review-radar/internal/report"
)

// entry is one cached report with its creation timestamp.
type entry struct {
	report    *report.Report
	createdAt time.Time
}

// MemoryCache is an in-process LRU cache with lazy TTL expiry.
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	order    []string // LRU order, oldest first
	capacity int
	ttl      time.Duration

	// now is swappable for TTL tests.
	now func() time.Time
}

// NewMemoryCache creates a new in-memory result cache.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 10
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &MemoryCache{
		entries:  make(map[string]*entry),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get retrieves a report from cache. Stale entries are removed on lookup
// rather than swept proactively.
func (c *MemoryCache) Get(_ context.Context, key string) (*report.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return e.report, true
}

// Put stores a report, evicting the least-recently-used entry when a new
// key would exceed capacity.
func (c *MemoryCache) Put(_ context.Context, key string, rep *report.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = &entry{report: rep, createdAt: c.now()}
		c.moveToEnd(key)
		return nil
	}

	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &entry{report: rep, createdAt: c.now()}
	c.order = append(c.order, key)
	return nil
}

// Size returns the number of live (non-expired) entries.
func (c *MemoryCache) Size(_ context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	live := 0
	cutoff := c.now().Add(-c.ttl)
	for _, e := range c.entries {
		if e.createdAt.After(cutoff) {
			live++
		}
	}
	return live
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats(ctx context.Context) Stats {
	return Stats{
		Size:     c.Size(ctx),
		Capacity: c.capacity,
		Backend:  "memory",
	}
}

// Close is a no-op for the memory backend.
func (c *MemoryCache) Close() error {
	return nil
}

// moveToEnd moves a key to the end of the LRU order (must hold lock).
func (c *MemoryCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// removeFromOrder removes a key from the LRU order (must hold lock).
func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
