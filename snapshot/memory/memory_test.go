package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/snapshot"
)

func newSnapshot(path string, at time.Time) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		ID:      uuid.New().String(),
		Prefix:  "/var/lib/gromox/domain/1",
		Path:    path,
		TakenAt: at,
		Rows: []propval.Row{{
			propval.MustNew(propval.TagDisplayName, propval.Unicode("Budget")),
		}},
	}
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("not connected", func(t *testing.T) {
		s := New()
		if err := s.Save(ctx, newSnapshot("/", base)); !errors.Is(err, snapshot.ErrNotConnected) {
			t.Errorf("Save err = %v", err)
		}
		if _, err := s.Get(ctx, uuid.New().String()); !errors.Is(err, snapshot.ErrNotConnected) {
			t.Errorf("Get err = %v", err)
		}
	})

	t.Run("connect twice", func(t *testing.T) {
		s := setupStore(t)
		if err := s.Connect(ctx); !errors.Is(err, snapshot.ErrAlreadyConnected) {
			t.Errorf("err = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("save and get", func(t *testing.T) {
		s := setupStore(t)
		snap := newSnapshot("/Projects", base)
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.Get(ctx, snap.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Path != "/Projects" || len(got.Rows) != 1 {
			t.Errorf("got %+v", got)
		}
		got.Path = "/changed"
		again, _ := s.Get(ctx, snap.ID)
		if again.Path != "/Projects" {
			t.Error("Get should return a copy")
		}
	})

	t.Run("assigns an id", func(t *testing.T) {
		s := setupStore(t)
		snap := newSnapshot("/", base)
		snap.ID = ""
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("save: %v", err)
		}
		if !snapshot.ValidID(snap.ID) {
			t.Errorf("ID = %q", snap.ID)
		}
	})

	t.Run("snapshots are immutable", func(t *testing.T) {
		s := setupStore(t)
		snap := newSnapshot("/", base)
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := s.Save(ctx, snap); !errors.Is(err, snapshot.ErrAlreadyExists) {
			t.Errorf("err = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("invalid and missing ids", func(t *testing.T) {
		s := setupStore(t)
		if _, err := s.Get(ctx, "not-a-uuid"); !errors.Is(err, snapshot.ErrInvalidID) {
			t.Errorf("err = %v, want ErrInvalidID", err)
		}
		if _, err := s.Get(ctx, uuid.New().String()); !snapshot.IsNotFound(err) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		snap := newSnapshot("/", base)
		snap.ID = "bogus"
		if err := s.Save(ctx, snap); !errors.Is(err, snapshot.ErrInvalidID) {
			t.Errorf("Save err = %v, want ErrInvalidID", err)
		}
	})

	t.Run("latest", func(t *testing.T) {
		s := setupStore(t)
		old := newSnapshot("/Projects", base)
		newest := newSnapshot("/Projects", base.Add(time.Hour))
		other := newSnapshot("/Other", base.Add(2*time.Hour))
		for _, snap := range []*snapshot.Snapshot{newest, old, other} {
			if err := s.Save(ctx, snap); err != nil {
				t.Fatalf("save: %v", err)
			}
		}
		got, err := s.Latest(ctx, old.Prefix, "/Projects")
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if got.ID != newest.ID {
			t.Errorf("Latest = %s, want %s", got.ID, newest.ID)
		}
		if _, err := s.Latest(ctx, "/elsewhere", "/Projects"); !snapshot.IsNotFound(err) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := setupStore(t)
		snap := newSnapshot("/", base)
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := s.Delete(ctx, snap.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("Len = %d", s.Len())
		}
		if err := s.Delete(ctx, snap.ID); !snapshot.IsNotFound(err) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	a := NewArchive()
	snap := newSnapshot("/Projects", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	uri, err := a.Put(ctx, snap)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if uri != "mem://"+snap.ID {
		t.Errorf("uri = %q", uri)
	}

	got, err := a.Load(ctx, uri)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != snap.ID || got.Rows[0].Text(propval.TagDisplayName) != "Budget" {
		t.Errorf("loaded %+v", got)
	}

	if err := a.Delete(ctx, uri); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := a.Load(ctx, uri); !snapshot.IsNotFound(err) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	for _, bad := range []string{"", "mem://", "s3://bucket/key"} {
		if _, err := a.Load(ctx, bad); !errors.Is(err, snapshot.ErrInvalidURI) {
			t.Errorf("Load(%q) err = %v, want ErrInvalidURI", bad, err)
		}
	}
}
