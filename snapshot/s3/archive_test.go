package s3

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbaliyan/exmdb/snapshot"
)

func TestParseS3URI(t *testing.T) {
	bucket, key, err := parseS3URI("s3://snaps/snapshots/2024/03/01/id.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if bucket != "snaps" || key != "snapshots/2024/03/01/id.json" {
		t.Errorf("got %q %q", bucket, key)
	}

	for _, uri := range []string{"", "s3://", "s3://bucket", "s3://bucket/", "gs://bucket/key", "s3:///key"} {
		if _, _, err := parseS3URI(uri); !errors.Is(err, snapshot.ErrInvalidURI) {
			t.Errorf("parseS3URI(%q) err = %v, want ErrInvalidURI", uri, err)
		}
	}
}

func TestObjectKey(t *testing.T) {
	snap := &snapshot.Snapshot{
		ID:      "5f0c7a52-1f0e-4d5e-9a51-2f2b7d2c9b10",
		TakenAt: time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("X", -3600)),
	}
	if got := objectKey("snapshots", snap); got != "snapshots/2024/03/02/5f0c7a52-1f0e-4d5e-9a51-2f2b7d2c9b10.json" {
		t.Errorf("key = %q", got)
	}
	if got := objectKey("", snap); got != "2024/03/02/5f0c7a52-1f0e-4d5e-9a51-2f2b7d2c9b10.json" {
		t.Errorf("key without prefix = %q", got)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	if _, err := New(ctx); err == nil {
		t.Error("expected error without a bucket")
	}

	a, err := New(ctx,
		WithBucket("snaps"),
		WithPrefix("exmdb"),
		WithEndpoint("http://127.0.0.1:9000"),
		WithPathStyle(true),
		WithStaticCredentials("key", "secret"),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.bucket != "snaps" || a.prefix != "exmdb" {
		t.Errorf("archive = %+v", a)
	}
	if a.client.Options().UsePathStyle != true {
		t.Error("expected path-style addressing")
	}

	if _, err := a.Load(ctx, "gs://snaps/key"); !errors.Is(err, snapshot.ErrInvalidURI) {
		t.Errorf("Load err = %v, want ErrInvalidURI", err)
	}
}

func TestAssumeRoleOption(t *testing.T) {
	o := &options{}
	WithAssumeRole("arn:aws:iam::123456789012:role/Snapshots", "")(o)
	if o.roleSessionName != DefaultSessionName {
		t.Errorf("session name = %q", o.roleSessionName)
	}
	WithAssumeRole("arn:aws:iam::123456789012:role/Snapshots", "nightly")(o)
	if o.roleSessionName != "nightly" {
		t.Errorf("session name = %q", o.roleSessionName)
	}
}
