package exmdb

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/wire"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

// Client states.
const (
	stateConnected int32 = iota
	stateFailed
	stateClosed
)

// Client is one connection to a store server, bound to one store prefix.
// Requests are serialized: at most one is on the wire at a time, and
// concurrent callers wait their turn.
//
// A request that fails at the transport level moves the client to the
// failed state. A failed client performs no further I/O and returns the
// original *TransportError from every call; construct a new Client to
// continue.
type Client struct {
	host   string
	port   uint16
	prefix string
	secure bool

	opts      *options
	logger    *slog.Logger
	otel      *otelInstrumentation
	transport Transport
	sem       *semaphore.Weighted

	state   atomic.Int32
	mu      sync.Mutex
	failure *TransportError

	bus    *event.Bus
	events *ClientEvents
}

// Connect dials the store server, performs the handshake for prefix and
// returns a connected Client. Any failure is a *ConnectError and leaves no
// open transport behind. Connect does not retry; see the retry package.
func Connect(ctx context.Context, host string, port uint16, prefix string, secure bool, opts ...Option) (*Client, error) {
	o := newOptions(opts...)
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	if host == "" || port == 0 || prefix == "" {
		return nil, &ConnectError{Addr: addr, Err: fmt.Errorf("%w: host, port and prefix are required", ErrInvalidArgument)}
	}
	if err := errors.Join(wire.CheckString(prefix), wire.CheckString(o.remoteID)); err != nil {
		return nil, &ConnectError{Addr: addr, Err: fmt.Errorf("%w: prefix and remote id: %w", ErrInvalidArgument, err)}
	}

	instr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: fmt.Errorf("init otel: %w", err)}
	}

	c := &Client{
		host:   host,
		port:   port,
		prefix: prefix,
		secure: secure,
		opts:   o,
		logger: o.logger.With("addr", addr, "prefix", prefix),
		otel:   instr,
		sem:    semaphore.NewWeighted(1),
	}

	if _, ok := ctx.Deadline(); !ok && o.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.dialTimeout)
		defer cancel()
	}

	ctx, end := c.otel.startSpan(ctx, "exmdb.connect",
		attribute.String("exmdb.addr", addr),
		attribute.Bool("exmdb.secure", secure),
	)

	success := false
	defer func() {
		if !success && c.transport != nil {
			c.transport.Close()
		}
	}()

	if err := c.dial(ctx, addr); err != nil {
		end(err)
		return nil, err
	}
	if err := c.handshake(ctx, addr); err != nil {
		end(err)
		return nil, err
	}
	if err := c.initEventBus(ctx); err != nil {
		err = &ConnectError{Addr: addr, Err: err}
		end(err)
		return nil, err
	}

	end(nil)
	success = true
	c.logger.Info("exmdb client connected", "secure", secure, "private", o.private)
	return c, nil
}

func (c *Client) dial(ctx context.Context, addr string) error {
	var tlsConfig *tls.Config
	if c.secure {
		if c.opts.tlsConfig != nil {
			tlsConfig = c.opts.tlsConfig.Clone()
		} else {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = c.host
		}
	}

	t, err := c.opts.dialer(ctx, addr, tlsConfig)
	if err != nil {
		c.logger.Warn("exmdb dial failed", "error", err)
		return &ConnectError{Addr: addr, Err: networkError(err)}
	}
	if l, ok := t.(interface{ SetLimits(wire.Limits) }); ok {
		l.SetLimits(c.opts.limits)
	}
	c.transport = t
	return nil
}

// handshake sends the connect call: store prefix, remote id and the
// private-store flag.
func (c *Client) handshake(ctx context.Context, addr string) error {
	p := wire.NewPusher(64)
	p.Uint8(uint8(CallConnect))
	p.String(c.prefix)
	p.String(c.opts.remoteID)
	p.Bool(c.opts.private)

	code, _, err := c.transport.RoundTrip(ctx, p.Bytes())
	if err != nil {
		c.logger.Warn("exmdb handshake failed", "error", err)
		return &ConnectError{Addr: addr, Err: networkError(err)}
	}
	if code != wire.CodeSuccess {
		c.logger.Warn("exmdb handshake refused", "code", code.String())
		return &ConnectError{Addr: addr, Code: code, Err: codeError(code)}
	}
	return nil
}

// Send issues req and decodes its response. Calls on one client are
// serialized. Errors are:
//   - *TransportError when the exchange failed; the client is failed
//     afterwards
//   - *ProtocolError when the response payload could not be decoded
//   - ErrInvalidArgument when the request cannot be encoded; nothing is
//     sent and the client stays usable
//   - the context error when ctx ended while waiting for an earlier call
//   - ErrClosed after Close
func Send[R any](ctx context.Context, c *Client, req Request[R]) (R, error) {
	var zero R
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer c.sem.Release(1)

	if err := c.usable(); err != nil {
		return zero, err
	}

	call := req.Call()
	ctx, end := c.otel.startSpan(ctx, "exmdb."+call.String(),
		attribute.String("exmdb.call", call.String()),
		attribute.String("exmdb.prefix", c.prefix),
	)
	start := time.Now()

	payload, err := c.roundTrip(ctx, call, req.push)
	var resp R
	if err == nil {
		resp, err = decodeResponse(payload, req.pull)
	}

	c.otel.recordRequest(ctx, call, time.Since(start), err)
	end(err)
	if err != nil {
		return zero, err
	}
	return resp, nil
}

func (c *Client) usable() error {
	switch c.state.Load() {
	case stateFailed:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.failure
	case stateClosed:
		return ErrClosed
	}
	return nil
}

// roundTrip encodes the call header and arguments, transmits them and
// returns the success payload.
func (c *Client) roundTrip(ctx context.Context, call CallID, push func(*wire.Pusher) error) ([]byte, error) {
	p := wire.NewPusher(64)
	p.Uint8(uint8(call))
	p.String(c.prefix)
	err := push(p)
	if err == nil {
		err = p.Err()
	}
	if err != nil {
		// Nothing was sent, so the connection is still in step.
		return nil, fmt.Errorf("exmdb: encode %s: %w: %w", call, ErrInvalidArgument, err)
	}

	if _, ok := ctx.Deadline(); !ok && c.opts.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.requestTimeout)
		defer cancel()
	}

	c.logger.Debug("exmdb request", "call", call.String(), "bytes", p.Len())
	code, payload, err := c.transport.RoundTrip(ctx, p.Bytes())
	if err != nil {
		return nil, c.fail(ctx, &TransportError{Call: call, Err: networkError(err)})
	}
	if code != wire.CodeSuccess {
		return nil, c.fail(ctx, &TransportError{Call: call, Code: code, Err: codeError(code)})
	}
	return payload, nil
}

func decodeResponse[R any](payload []byte, pull func(*wire.Puller) (R, error)) (R, error) {
	r := wire.NewPuller(payload)
	resp, err := pull(r)
	if err == nil {
		err = r.Done()
	}
	if err != nil {
		var zero R
		var pe *propval.ProtocolError
		if errors.As(err, &pe) {
			return zero, err
		}
		return zero, &propval.ProtocolError{Err: fmt.Errorf("%w: %w", propval.ErrMalformedValue, err)}
	}
	return resp, nil
}

// fail moves the client to the failed state and records err as the error
// every later call returns. The transport is closed since the stream may
// be out of sync.
func (c *Client) fail(ctx context.Context, err *TransportError) error {
	c.mu.Lock()
	if c.failure != nil {
		first := c.failure
		c.mu.Unlock()
		return first
	}
	c.failure = err
	c.mu.Unlock()

	if !c.state.CompareAndSwap(stateConnected, stateFailed) {
		// Closed concurrently; keep the closed state.
		return err
	}
	c.transport.Close()
	c.logger.Error("exmdb client failed", "call", err.Call.String(), "error", err)

	if c.events != nil {
		// The request context may be the reason for the failure.
		pubCtx := context.WithoutCancel(ctx)
		_ = publish(pubCtx, c, "ClientFailed", c.events.ClientFailed, ClientFailedEvent{
			Addr:     c.Addr(),
			Prefix:   c.prefix,
			Call:     err.Call.String(),
			Error:    err.Error(),
			FailedAt: time.Now().UTC(),
		})
	}
	return err
}

// Ping checks that the store is loaded and reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := Send(ctx, c, PingStoreRequest{})
	return err
}

// Close releases the transport. A request in flight fails with a transport
// error. Close is idempotent.
func (c *Client) Close(ctx context.Context) error {
	prev := c.state.Swap(stateClosed)
	if prev == stateClosed {
		return nil
	}
	var errs []error
	if prev == stateConnected {
		if err := c.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	if err := c.closeEventBus(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}
	c.logger.Info("exmdb client closed")
	return errors.Join(errs...)
}

// Addr returns host:port.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(int(c.port)))
}

// Host returns the server host.
func (c *Client) Host() string { return c.host }

// Port returns the server port.
func (c *Client) Port() uint16 { return c.port }

// Prefix returns the store prefix the client is bound to.
func (c *Client) Prefix() string { return c.prefix }

// Secure reports whether the connection uses TLS.
func (c *Client) Secure() bool { return c.secure }

// Private reports whether the client is connected to a private store.
func (c *Client) Private() bool { return c.opts.private }

// Failed reports whether the client is in the failed state.
func (c *Client) Failed() bool { return c.state.Load() == stateFailed }

// Err returns the transport error that failed the client, or nil.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failure == nil {
		return nil
	}
	return c.failure
}

// Events returns the client's event instances.
func (c *Client) Events() *ClientEvents { return c.events }
