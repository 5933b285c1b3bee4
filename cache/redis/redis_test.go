package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupCache(t *testing.T, opts ...Option) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, opts...), mr
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		c, mr := setupCache(t)
		if err := c.Set(ctx, "addr|public|/p|/inbox", 0x0200000000000001); err != nil {
			t.Fatalf("set: %v", err)
		}
		id, ok, err := c.Get(ctx, "addr|public|/p|/inbox")
		if err != nil || !ok || id != 0x0200000000000001 {
			t.Errorf("Get = %#x, %v, %v", id, ok, err)
		}
		if !mr.Exists(DefaultKeyPrefix + "addr|public|/p|/inbox") {
			t.Error("expected key under default prefix")
		}
	})

	t.Run("miss", func(t *testing.T) {
		c, _ := setupCache(t)
		_, ok, err := c.Get(ctx, "missing")
		if err != nil || ok {
			t.Errorf("Get = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		c, _ := setupCache(t)
		c.Set(ctx, "k", 5)
		if err := c.Delete(ctx, "k"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, ok, _ := c.Get(ctx, "k"); ok {
			t.Error("expected key to be gone")
		}
	})

	t.Run("ttl", func(t *testing.T) {
		c, mr := setupCache(t, WithTTL(time.Minute))
		c.Set(ctx, "k", 5)
		mr.FastForward(2 * time.Minute)
		if _, ok, _ := c.Get(ctx, "k"); ok {
			t.Error("expected key to expire")
		}
	})

	t.Run("custom prefix", func(t *testing.T) {
		c, mr := setupCache(t, WithKeyPrefix("test:"))
		c.Set(ctx, "k", 5)
		if !mr.Exists("test:k") {
			t.Error("expected key under custom prefix")
		}
	})

	t.Run("non-numeric value", func(t *testing.T) {
		c, mr := setupCache(t)
		mr.Set(DefaultKeyPrefix+"k", "not a number")
		if _, _, err := c.Get(ctx, "k"); err == nil {
			t.Error("expected error for corrupt entry")
		}
	})

	t.Run("server down", func(t *testing.T) {
		c, mr := setupCache(t)
		mr.Close()
		if err := c.Set(ctx, "k", 5); err == nil {
			t.Error("expected error with server down")
		}
	})
}
