package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/snapshot"
)

func TestOptions(t *testing.T) {
	o := newOptions()
	if o.table != DefaultTable || o.timeout != DefaultTimeout || o.logger == nil {
		t.Errorf("defaults = %+v", o)
	}

	o = newOptions(WithTable(""), WithTimeout(-1), WithLogger(nil))
	if o.table != DefaultTable || o.timeout != DefaultTimeout || o.logger == nil {
		t.Error("zero values should keep defaults")
	}

	o = newOptions(WithTable("snaps"), WithTimeout(time.Second))
	if o.table != "snaps" || o.timeout != time.Second {
		t.Errorf("got %+v", o)
	}
}

func TestNotConnected(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	if err := s.Connect(ctx); err == nil {
		t.Error("expected error without a db")
	}
	if err := s.Save(ctx, &snapshot.Snapshot{}); !errors.Is(err, snapshot.ErrNotConnected) {
		t.Errorf("Save err = %v", err)
	}
	if _, err := s.Get(ctx, "x"); !errors.Is(err, snapshot.ErrNotConnected) {
		t.Errorf("Get err = %v", err)
	}
	if _, err := s.Latest(ctx, "/p", "/"); !errors.Is(err, snapshot.ErrNotConnected) {
		t.Errorf("Latest err = %v", err)
	}
	if err := s.Delete(ctx, "x"); !errors.Is(err, snapshot.ErrNotConnected) {
		t.Errorf("Delete err = %v", err)
	}
}

func TestRecordSnapshot(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	rec := record{
		ID:      "5f0c7a52-1f0e-4d5e-9a51-2f2b7d2c9b10",
		Prefix:  "/var/lib/gromox/domain/1",
		Path:    "/Projects",
		TakenAt: at,
		Rows:    []byte(`[[{"tag":"0x67480014","data":"AAAAAAABAAE="}]]`),
	}
	snap, err := rec.snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.TakenAt.Location() != time.UTC || !snap.TakenAt.Equal(at) {
		t.Errorf("TakenAt = %v", snap.TakenAt)
	}
	if len(snap.Rows) != 1 {
		t.Fatalf("rows = %v", snap.Rows)
	}
	if got := snap.Rows[0].Uint64(propval.TagFolderID); got != 0x0100010000000000 {
		t.Errorf("folder id = %#x", got)
	}

	rec.Rows = []byte(`[[{"tag":"0x67480014","data":"AQ=="}]]`)
	if _, err := rec.snapshot(); err == nil {
		t.Error("expected error for corrupt rows")
	}
}
