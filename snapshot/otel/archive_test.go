package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/snapshot"
	"github.com/rbaliyan/exmdb/snapshot/memory"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

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

func TestArchive(t *testing.T) {
	ctx := context.Background()

	configs := map[string][]Option{
		"enabled": {
			WithTracerProvider(tracenoop.NewTracerProvider()),
			WithMeterProvider(metricnoop.NewMeterProvider()),
			WithServiceName("snapshots"),
		},
		"disabled":     {WithDisabled()},
		"tracing only": {WithMetrics(false), WithTracerProvider(tracenoop.NewTracerProvider())},
		"metrics only": {WithTracing(false), WithMeterProvider(metricnoop.NewMeterProvider())},
	}

	for name, opts := range configs {
		t.Run(name, func(t *testing.T) {
			a, err := New(memory.NewArchive(), opts...)
			if err != nil {
				t.Fatalf("new: %v", err)
			}

			uri, err := a.Put(ctx, testSnapshot())
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			got, err := a.Load(ctx, uri)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.Len() != 1 {
				t.Errorf("Len = %d", got.Len())
			}
			if err := a.Delete(ctx, uri); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := a.Load(ctx, uri); !snapshot.IsNotFound(err) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
			if _, err := a.Load(ctx, "bogus"); !errors.Is(err, snapshot.ErrInvalidURI) {
				t.Errorf("err = %v, want ErrInvalidURI", err)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	a, err := New(memory.NewArchive())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !a.opts.tracingEnabled || !a.opts.metricsEnabled || a.opts.serviceName != "exmdb" {
		t.Errorf("opts = %+v", a.opts)
	}
	if a.tracer == nil || a.latency == nil {
		t.Error("expected tracer and instruments")
	}
}
