// Package otel provides OpenTelemetry instrumentation for snapshot
// archives.
package otel

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/exmdb/snapshot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbaliyan/exmdb/snapshot/otel"

// Archive wraps a snapshot.Archive with tracing and metrics.
type Archive struct {
	backend snapshot.Archive
	opts    *options

	tracer trace.Tracer

	latency metric.Float64Histogram
	count   metric.Int64Counter
	errors  metric.Int64Counter
	folders metric.Int64Counter
}

var _ snapshot.Archive = (*Archive)(nil)

// New wraps backend.
func New(backend snapshot.Archive, opts ...Option) (*Archive, error) {
	o := &options{
		tracingEnabled: true,
		metricsEnabled: true,
		serviceName:    "exmdb",
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	a := &Archive{
		backend: backend,
		opts:    o,
	}

	if o.tracingEnabled {
		a.tracer = o.tracerProvider.Tracer(instrumentationName)
	}

	if o.metricsEnabled {
		if err := a.initMetrics(o.meterProvider); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}

	return a, nil
}

func (a *Archive) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error
	a.latency, err = meter.Float64Histogram(
		"snapshot.archive.duration",
		metric.WithDescription("Duration of snapshot archive operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	a.count, err = meter.Int64Counter(
		"snapshot.archive.count",
		metric.WithDescription("Number of snapshot archive operations"),
	)
	if err != nil {
		return err
	}

	a.errors, err = meter.Int64Counter(
		"snapshot.archive.errors",
		metric.WithDescription("Number of failed snapshot archive operations"),
	)
	if err != nil {
		return err
	}

	a.folders, err = meter.Int64Counter(
		"snapshot.archive.folders",
		metric.WithDescription("Number of folder rows written or read"),
	)
	return err
}

// Put archives snap with tracing and metrics.
func (a *Archive) Put(ctx context.Context, snap *snapshot.Snapshot) (string, error) {
	ctx, end := a.start(ctx, "put",
		attribute.String("snapshot.id", snap.ID),
		attribute.String("snapshot.path", snap.Path),
	)
	start := time.Now()

	uri, err := a.backend.Put(ctx, snap)

	rows := 0
	if err == nil {
		rows = snap.Len()
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("snapshot.uri", uri))
	}
	a.record(ctx, "put", time.Since(start), rows, err)
	end(err)
	return uri, err
}

// Load reads the snapshot at uri with tracing and metrics.
func (a *Archive) Load(ctx context.Context, uri string) (*snapshot.Snapshot, error) {
	ctx, end := a.start(ctx, "load", attribute.String("snapshot.uri", uri))
	start := time.Now()

	snap, err := a.backend.Load(ctx, uri)

	rows := 0
	if err == nil {
		rows = snap.Len()
	}
	a.record(ctx, "load", time.Since(start), rows, err)
	end(err)
	return snap, err
}

// Delete removes the object at uri with tracing and metrics.
func (a *Archive) Delete(ctx context.Context, uri string) error {
	ctx, end := a.start(ctx, "delete", attribute.String("snapshot.uri", uri))
	start := time.Now()

	err := a.backend.Delete(ctx, uri)

	a.record(ctx, "delete", time.Since(start), 0, err)
	end(err)
	return err
}

func (a *Archive) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !a.opts.tracingEnabled || a.tracer == nil {
		return ctx, func(error) {}
	}
	attrs = append(attrs, attribute.String("service.name", a.opts.serviceName))
	ctx, span := a.tracer.Start(ctx, "snapshot.archive."+op,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (a *Archive) record(ctx context.Context, op string, d time.Duration, rows int, err error) {
	if !a.opts.metricsEnabled {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("service.name", a.opts.serviceName),
	)
	a.latency.Record(ctx, d.Seconds(), attrs)
	a.count.Add(ctx, 1, attrs)
	if rows > 0 {
		a.folders.Add(ctx, int64(rows), attrs)
	}
	if err != nil {
		a.errors.Add(ctx, 1, attrs)
	}
}
