package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/snapshot"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestOptions(t *testing.T) {
	o := newOptions()
	if o.database != DefaultDatabase || o.collection != DefaultCollection || o.timeout != DefaultTimeout {
		t.Errorf("defaults = %+v", o)
	}
	o = newOptions(WithDatabase("db"), WithCollection("snaps"), WithTimeout(time.Second), WithLogger(nil))
	if o.database != "db" || o.collection != "snaps" || o.timeout != time.Second || o.logger == nil {
		t.Errorf("got %+v", o)
	}
}

func TestNotConnected(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	if err := s.Connect(ctx); err == nil {
		t.Error("expected error without a client")
	}
	if err := s.Save(ctx, &snapshot.Snapshot{}); !errors.Is(err, snapshot.ErrNotConnected) {
		t.Errorf("Save err = %v", err)
	}
	if _, err := s.Latest(ctx, "/p", "/"); !errors.Is(err, snapshot.ErrNotConnected) {
		t.Errorf("Latest err = %v", err)
	}
}

func TestDocRoundTrip(t *testing.T) {
	snap := &snapshot.Snapshot{
		ID:      "5f0c7a52-1f0e-4d5e-9a51-2f2b7d2c9b10",
		Addr:    "localhost:5000",
		Prefix:  "/var/lib/gromox/domain/1",
		Path:    "/Projects",
		TakenAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Rows: []propval.Row{{
			propval.MustNew(propval.TagFolderID, propval.I8(0x0100010000000000)),
			propval.MustNew(propval.TagDisplayName, propval.Unicode("Budget")),
			propval.MustNew(propval.TagSubfolders, propval.Bool(true)),
		}},
	}

	doc, err := toDoc(snap)
	if err != nil {
		t.Fatalf("toDoc: %v", err)
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("bson marshal: %v", err)
	}
	var decoded snapshotDoc
	if err := bson.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("bson unmarshal: %v", err)
	}
	got, err := decoded.snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
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

	decoded.Rows[0][0] = decoded.Rows[0][0][:6]
	if _, err := decoded.snapshot(); err == nil {
		t.Error("expected error for a truncated value")
	}
}
