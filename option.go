package exmdb

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/wire"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	DefaultPort           = 5000
	DefaultDialTimeout    = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultRemoteID       = "exmdb-go"

	// Codepage sent with table queries and folder creation (UTF-8).
	DefaultCodepage = 65001
)

// options holds client configuration.
type options struct {
	logger *slog.Logger

	// Transport
	dialer         Dialer
	tlsConfig      *tls.Config
	dialTimeout    time.Duration
	requestTimeout time.Duration
	limits         wire.Limits

	// Handshake
	private  bool
	remoteID string

	// Store
	codepage  uint32
	storeGUID *propval.GUID
	pathCache PathCache

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventErrorsFatal      bool
	eventTransport        transport.Transport
	redisClient           redis.UniversalClient
	onEventPublishFailure EventPublishFailureFunc
}

// EventPublishFailureFunc is called when an event fails to publish.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure calls the failure callback, recovering from panics
// so a faulty handler cannot break the operation that published.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:         slog.Default(),
		dialer:         DialTCP,
		dialTimeout:    DefaultDialTimeout,
		requestTimeout: DefaultRequestTimeout,
		limits:         wire.DefaultLimits(),
		remoteID:       DefaultRemoteID,
		codepage:       DefaultCodepage,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}

	return o
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialer replaces the function used to open the transport. The default
// is DialTCP.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithTransport makes Connect use t instead of dialing. The client takes
// ownership of t and closes it on failure and on Close.
func WithTransport(t Transport) Option {
	return func(o *options) {
		if t != nil {
			o.dialer = func(context.Context, string, *tls.Config) (Transport, error) {
				return t, nil
			}
		}
	}
}

// WithTLSConfig sets the TLS configuration used when connecting with
// secure set. Without it a default configuration verifying the host name is
// used.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.tlsConfig = cfg
		}
	}
}

// WithDialTimeout bounds the dial and handshake when the caller's context
// carries no deadline.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// WithTimeout bounds each request when the caller's context carries no
// deadline. A request that times out fails the client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithLimits sets the maximum frame sizes accepted from the server.
func WithLimits(l wire.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithPrivate connects to a private (user) store instead of a public
// (domain) store. Path resolution then starts at the private IPM subtree.
func WithPrivate(private bool) Option {
	return func(o *options) {
		o.private = private
	}
}

// WithRemoteID sets the identifier the client announces in the handshake.
func WithRemoteID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.remoteID = id
		}
	}
}

// WithCodepage sets the codepage sent with table queries and folder
// creation.
func WithCodepage(cpid uint32) Option {
	return func(o *options) {
		if cpid != 0 {
			o.codepage = cpid
		}
	}
}

// WithStoreGUID sets the store's replica GUID. When set, created folders
// carry a change key and predecessor change list derived from it.
func WithStoreGUID(g propval.GUID) Option {
	return func(o *options) {
		o.storeGUID = &g
	}
}

// WithPathCache caches resolved folder paths. Only successful lookups are
// cached.
func WithPathCache(c PathCache) Option {
	return func(o *options) {
		if c != nil {
			o.pathCache = c
		}
	}
}

// WithTracing enables OpenTelemetry tracing.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables OpenTelemetry metrics.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both tracing and metrics.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name used for the event bus name.
// Default is "exmdb".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom tracer provider.
// If not set, uses the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom meter provider.
// If not set, uses the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithEventErrorsFatal makes event publish failures fail the operation that
// published. The operation itself has still taken effect on the server; the
// returned error is an *EventPublishError.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the transport for client events.
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient publishes client events over Redis.
// Ignored when WithEventTransport is also given.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets the callback for non-fatal event
// publish failures. The default logs at error level.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}
