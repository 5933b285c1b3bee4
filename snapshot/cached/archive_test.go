package cached

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/snapshot"
	"github.com/rbaliyan/exmdb/snapshot/memory"
)

// countingArchive counts backend loads.
type countingArchive struct {
	*memory.Archive
	loads int
}

func (c *countingArchive) Load(ctx context.Context, uri string) (*snapshot.Snapshot, error) {
	c.loads++
	return c.Archive.Load(ctx, uri)
}

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		ID:      "5f0c7a52-1f0e-4d5e-9a51-2f2b7d2c9b10",
		Path:    "/Projects",
		TakenAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Rows: []propval.Row{{
			propval.MustNew(propval.TagDisplayName, propval.Unicode("Budget")),
		}},
	}
}

func setupArchive(t *testing.T, opts ...Option) (*Archive, *countingArchive) {
	t.Helper()
	backend := &countingArchive{Archive: memory.NewArchive()}
	opts = append([]Option{
		WithCacheDir(t.TempDir()),
		WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	a, err := New(backend, opts...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, backend
}

func TestArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("put caches", func(t *testing.T) {
		a, backend := setupArchive(t)
		uri, err := a.Put(ctx, testSnapshot())
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if a.Size() == 0 {
			t.Error("expected cached bytes after put")
		}
		got, err := a.Load(ctx, uri)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.Rows[0].Text(propval.TagDisplayName) != "Budget" {
			t.Errorf("loaded %+v", got)
		}
		if backend.loads != 0 {
			t.Errorf("backend loads = %d, want 0", backend.loads)
		}
	})

	t.Run("miss loads once", func(t *testing.T) {
		a, backend := setupArchive(t)
		uri, err := backend.Put(ctx, testSnapshot())
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		for range 3 {
			if _, err := a.Load(ctx, uri); err != nil {
				t.Fatalf("load: %v", err)
			}
		}
		if backend.loads != 1 {
			t.Errorf("backend loads = %d, want 1", backend.loads)
		}
	})

	t.Run("expired entries reload", func(t *testing.T) {
		a, backend := setupArchive(t, WithTTL(time.Hour))
		uri, _ := a.Put(ctx, testSnapshot())
		old := time.Now().Add(-2 * time.Hour)
		if err := os.Chtimes(a.path(uri), old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
		if _, err := a.Load(ctx, uri); err != nil {
			t.Fatalf("load: %v", err)
		}
		if backend.loads != 1 {
			t.Errorf("backend loads = %d, want 1", backend.loads)
		}
	})

	t.Run("corrupt entries reload", func(t *testing.T) {
		a, backend := setupArchive(t)
		uri, _ := a.Put(ctx, testSnapshot())
		if err := os.WriteFile(a.path(uri), []byte("{"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := a.Load(ctx, uri); err != nil {
			t.Fatalf("load: %v", err)
		}
		if backend.loads != 1 {
			t.Errorf("backend loads = %d, want 1", backend.loads)
		}
	})

	t.Run("full cache passes through", func(t *testing.T) {
		a, backend := setupArchive(t, WithMaxSize(10))
		uri, _ := a.Put(ctx, testSnapshot())
		if a.Size() != 0 {
			t.Errorf("Size = %d, want 0", a.Size())
		}
		if _, err := a.Load(ctx, uri); err != nil {
			t.Fatalf("load: %v", err)
		}
		if backend.loads != 1 {
			t.Errorf("backend loads = %d, want 1", backend.loads)
		}
	})

	t.Run("delete evicts", func(t *testing.T) {
		a, _ := setupArchive(t)
		uri, _ := a.Put(ctx, testSnapshot())
		if err := a.Delete(ctx, uri); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if a.Size() != 0 {
			t.Errorf("Size = %d, want 0", a.Size())
		}
		if _, err := a.Load(ctx, uri); !snapshot.IsNotFound(err) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("errors pass through", func(t *testing.T) {
		a, _ := setupArchive(t)
		if _, err := a.Load(ctx, "bogus"); !errors.Is(err, snapshot.ErrInvalidURI) {
			t.Errorf("err = %v, want ErrInvalidURI", err)
		}
	})

	t.Run("clear", func(t *testing.T) {
		a, _ := setupArchive(t)
		a.Put(ctx, testSnapshot())
		if err := a.ClearCache(); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if a.Size() != 0 {
			t.Errorf("Size = %d, want 0", a.Size())
		}
	})
}

func TestExistingCacheSize(t *testing.T) {
	dir := t.TempDir()
	a, err := New(memory.NewArchive(), WithCacheDir(dir), WithTTL(0), WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a.Put(context.Background(), testSnapshot())
	size := a.Size()
	a.Close()

	b, err := New(memory.NewArchive(), WithCacheDir(dir), WithTTL(0))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer b.Close()
	if b.Size() != size {
		t.Errorf("Size = %d, want %d", b.Size(), size)
	}
}
