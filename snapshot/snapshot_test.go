package snapshot_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/rbaliyan/exmdb"
	"github.com/rbaliyan/exmdb/exmdbtest"
	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/snapshot"
)

const testPrefix = "/var/lib/gromox/domain/1"

func setupClient(t *testing.T, srv *exmdbtest.Server) *exmdb.Client {
	t.Helper()
	c, err := exmdb.Connect(context.Background(), "localhost", exmdb.DefaultPort, testPrefix, false,
		exmdb.WithDialer(srv.Dialer()),
		exmdb.WithLogger(slog.New(slog.DiscardHandler)),
	)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestTake(t *testing.T) {
	ctx := context.Background()

	t.Run("records rows and origin", func(t *testing.T) {
		srv := exmdbtest.New()
		budget := srv.AddPath("/Projects/Budget", "IPF.Note")
		srv.AddFolder(budget, "2024", "IPF.Note")
		c := setupClient(t, srv)

		snap, err := snapshot.Take(ctx, c, "Projects/", snapshot.WithClock(fixedClock))
		if err != nil {
			t.Fatalf("take: %v", err)
		}
		if !snapshot.ValidID(snap.ID) {
			t.Errorf("ID = %q, want a uuid", snap.ID)
		}
		if snap.Addr != "localhost:5000" || snap.Prefix != testPrefix {
			t.Errorf("origin = %q %q", snap.Addr, snap.Prefix)
		}
		if snap.Path != "/Projects" {
			t.Errorf("Path = %q, want /Projects", snap.Path)
		}
		if !snap.TakenAt.Equal(fixedClock()) {
			t.Errorf("TakenAt = %v", snap.TakenAt)
		}
		if snap.Len() != 2 {
			t.Fatalf("Len = %d, want 2", snap.Len())
		}
		row, ok := snap.Folder(budget)
		if !ok {
			t.Fatal("budget folder missing")
		}
		if got := row.Text(propval.TagDisplayName); got != "Budget" {
			t.Errorf("name = %q", got)
		}
	})

	t.Run("always records the folder id", func(t *testing.T) {
		srv := exmdbtest.New()
		id := srv.AddPath("/Projects", "")
		c := setupClient(t, srv)

		snap, err := snapshot.Take(ctx, c, "/", snapshot.WithColumns(propval.TagDisplayName))
		if err != nil {
			t.Fatalf("take: %v", err)
		}
		if snap.Len() != 1 {
			t.Fatalf("Len = %d, want 1", snap.Len())
		}
		row := snap.Rows[0]
		if len(row) != 2 || row[0].Tag != propval.TagFolderID {
			t.Fatalf("row = %v, want folder id then name", row)
		}
		if row.Uint64(propval.TagFolderID) != id {
			t.Errorf("folder id = %#x, want %#x", row.Uint64(propval.TagFolderID), id)
		}
	})

	t.Run("without depth", func(t *testing.T) {
		srv := exmdbtest.New()
		srv.AddPath("/Projects/Budget", "")
		c := setupClient(t, srv)

		snap, err := snapshot.Take(ctx, c, "/", snapshot.WithDepth(false))
		if err != nil {
			t.Fatalf("take: %v", err)
		}
		if snap.Len() != 1 {
			t.Errorf("Len = %d, want 1", snap.Len())
		}
	})

	t.Run("missing path", func(t *testing.T) {
		srv := exmdbtest.New()
		c := setupClient(t, srv)

		_, err := snapshot.Take(ctx, c, "/Nope")
		if !errors.Is(err, exmdb.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestMarshal(t *testing.T) {
	snap := &snapshot.Snapshot{
		ID:      "5f0c7a52-1f0e-4d5e-9a51-2f2b7d2c9b10",
		Addr:    "localhost:5000",
		Prefix:  testPrefix,
		Path:    "/Projects",
		TakenAt: fixedClock(),
		Rows: []propval.Row{{
			propval.MustNew(propval.TagFolderID, propval.I8(exmdb.MakeEID(1, 0x100))),
			propval.MustNew(propval.TagDisplayName, propval.Unicode("Budget")),
			propval.MustNew(propval.TagCreationTime, propval.FromTime(fixedClock())),
		}},
	}

	data, err := snapshot.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := snapshot.Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ID != snap.ID || got.Path != snap.Path || !got.TakenAt.Equal(snap.TakenAt) {
		t.Errorf("header = %+v", got)
	}
	if len(got.Rows) != 1 || len(got.Rows[0]) != 3 {
		t.Fatalf("rows = %v", got.Rows)
	}
	for i, tp := range snap.Rows[0] {
		if !propval.Equal(tp, got.Rows[0][i]) {
			t.Errorf("value %d = %v, want %v", i, got.Rows[0][i], tp)
		}
	}

	t.Run("rejects corrupt values", func(t *testing.T) {
		bad := []byte(`{"id":"x","rows":[[{"tag":"0x67480014","data":"AQI="}]]}`)
		if _, err := snapshot.Unmarshal(bad); err == nil {
			t.Error("expected error for truncated i8")
		}
	})
}

func TestDiff(t *testing.T) {
	row := func(gc uint64, name string) propval.Row {
		return propval.Row{
			propval.MustNew(propval.TagFolderID, propval.I8(exmdb.MakeEID(1, gc))),
			propval.MustNew(propval.TagDisplayName, propval.Unicode(name)),
		}
	}
	before := &snapshot.Snapshot{Rows: []propval.Row{row(1, "A"), row(2, "B"), row(3, "C")}}
	after := &snapshot.Snapshot{Rows: []propval.Row{row(1, "A"), row(2, "Renamed"), row(4, "D")}}

	c := snapshot.Diff(before, after)
	if len(c.Added) != 1 || c.Added[0] != exmdb.MakeEID(1, 4) {
		t.Errorf("Added = %v", c.Added)
	}
	if len(c.Removed) != 1 || c.Removed[0] != exmdb.MakeEID(1, 3) {
		t.Errorf("Removed = %v", c.Removed)
	}
	if len(c.Modified) != 1 || c.Modified[0] != exmdb.MakeEID(1, 2) {
		t.Errorf("Modified = %v", c.Modified)
	}
	if c.Empty() {
		t.Error("expected changes")
	}
	if !snapshot.Diff(before, before).Empty() {
		t.Error("diff of a snapshot with itself should be empty")
	}
}
