package exmdb

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/exmdb"
)

// otelInstrumentation holds OpenTelemetry instrumentation for a client.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	// Per-call
	requestLatency metric.Float64Histogram
	requestCount   metric.Int64Counter
	requestErrors  metric.Int64Counter

	// Folder operations
	listLatency   metric.Float64Histogram
	listCount     metric.Int64Counter
	listErrors    metric.Int64Counter
	createLatency metric.Float64Histogram
	createCount   metric.Int64Counter
	createErrors  metric.Int64Counter
}

// newOtelInstrumentation creates OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// instrument groups the three instruments recorded for one operation.
type instrument struct {
	latency *metric.Float64Histogram
	count   *metric.Int64Counter
	errors  *metric.Int64Counter
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	groups := []struct {
		name string
		what string
		instrument
	}{
		{"exmdb.request", "store requests", instrument{&o.requestLatency, &o.requestCount, &o.requestErrors}},
		{"exmdb.list", "folder list operations", instrument{&o.listLatency, &o.listCount, &o.listErrors}},
		{"exmdb.create", "folder create operations", instrument{&o.createLatency, &o.createCount, &o.createErrors}},
	}

	for _, g := range groups {
		var err error
		*g.latency, err = meter.Float64Histogram(
			g.name+".duration",
			metric.WithDescription("Duration of "+g.what),
			metric.WithUnit("s"),
		)
		if err != nil {
			return err
		}
		*g.count, err = meter.Int64Counter(
			g.name+".count",
			metric.WithDescription("Number of "+g.what),
		)
		if err != nil {
			return err
		}
		*g.errors, err = meter.Int64Counter(
			g.name+".errors",
			metric.WithDescription("Number of failed "+g.what),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// startSpan starts a span if tracing is enabled. The returned function ends
// the span, recording err when non-nil.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
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

// recordRequest records one round trip.
func (o *otelInstrumentation) recordRequest(ctx context.Context, call CallID, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("call", call.String()),
	)

	o.requestLatency.Record(ctx, duration.Seconds(), attrs)
	o.requestCount.Add(ctx, 1, attrs)
	if err != nil {
		o.requestErrors.Add(ctx, 1, attrs)
	}
}

// recordList records a folder listing.
func (o *otelInstrumentation) recordList(ctx context.Context, duration time.Duration, rowCount int, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Int("row_count", rowCount),
	)

	o.listLatency.Record(ctx, duration.Seconds(), attrs)
	o.listCount.Add(ctx, 1, attrs)
	if err != nil {
		o.listErrors.Add(ctx, 1, attrs)
	}
}

// recordCreate records a folder creation.
func (o *otelInstrumentation) recordCreate(ctx context.Context, duration time.Duration, containerClass string, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("container_class", containerClass),
	)

	o.createLatency.Record(ctx, duration.Seconds(), attrs)
	o.createCount.Add(ctx, 1, attrs)
	if err != nil {
		o.createErrors.Add(ctx, 1, attrs)
	}
}
