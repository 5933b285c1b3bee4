// Package redis provides a folder path cache shared through Redis, so that
// several processes connected to the same store reuse each other's path
// lookups.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces cache keys.
const DefaultKeyPrefix = "exmdb:path:"

// Cache stores folder ids as Redis strings.
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithKeyPrefix sets the prefix prepended to every key.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithTTL sets the expiry of stored entries. Zero, the default, means no
// expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// New creates a cache on client.
func New(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{client: client, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the folder id stored under key.
func (c *Cache) Get(ctx context.Context, key string) (uint64, bool, error) {
	id, err := c.client.Get(ctx, c.prefix+key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis cache: get: %w", err)
	}
	return id, true, nil
}

// Set stores folderID under key.
func (c *Cache) Set(ctx context.Context, key string, folderID uint64) error {
	if err := c.client.Set(ctx, c.prefix+key, folderID, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache: set: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis cache: delete: %w", err)
	}
	return nil
}
