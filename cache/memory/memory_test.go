package memory

import (
	"context"
	"testing"
	"time"
)

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		c := New()
		if err := c.Set(ctx, "k", 42); err != nil {
			t.Fatalf("set: %v", err)
		}
		id, ok, err := c.Get(ctx, "k")
		if err != nil || !ok || id != 42 {
			t.Errorf("Get = %d, %v, %v; want 42, true, nil", id, ok, err)
		}
	})

	t.Run("miss", func(t *testing.T) {
		c := New()
		_, ok, err := c.Get(ctx, "missing")
		if err != nil || ok {
			t.Errorf("Get = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		c := New()
		c.Set(ctx, "k", 1)
		if err := c.Delete(ctx, "k"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, ok, _ := c.Get(ctx, "k"); ok {
			t.Error("expected key to be gone")
		}
		if err := c.Delete(ctx, "k"); err != nil {
			t.Errorf("second delete: %v", err)
		}
	})

	t.Run("ttl expiry", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		c := New(WithTTL(time.Minute), WithClock(func() time.Time { return now }))
		c.Set(ctx, "k", 7)

		now = now.Add(59 * time.Second)
		if _, ok, _ := c.Get(ctx, "k"); !ok {
			t.Fatal("expected entry before ttl")
		}
		now = now.Add(time.Second)
		if _, ok, _ := c.Get(ctx, "k"); ok {
			t.Error("expected entry to expire at ttl")
		}
		if c.Len() != 0 {
			t.Errorf("Len = %d, want 0 after expiry", c.Len())
		}
	})
}
