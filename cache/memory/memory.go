// Package memory provides an in-process folder path cache.
package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	folderID  uint64
	expiresAt time.Time
}

// Cache maps path keys to folder ids in memory. Entries expire after the
// configured TTL; a zero TTL keeps them until deleted. Safe for concurrent
// use.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long an entry stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the folder id stored under key.
func (c *Cache) Get(_ context.Context, key string) (uint64, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check: Set may have refreshed the entry meanwhile.
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return 0, false, nil
	}
	return e.folderID, true, nil
}

// Set stores folderID under key.
func (c *Cache) Set(_ context.Context, key string, folderID uint64) error {
	e := entry{folderID: folderID}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
