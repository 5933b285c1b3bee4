package exmdb

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rbaliyan/exmdb/wire"
)

// Transport carries one request body to the server and returns the
// response code and payload. Implementations own the framing and the
// socket; the client serializes calls so at most one RoundTrip is in
// flight.
type Transport interface {
	RoundTrip(ctx context.Context, body []byte) (wire.ResponseCode, []byte, error)
	Close() error
}

// Dialer opens a Transport to addr. tlsConfig is nil for plain
// connections.
type Dialer func(ctx context.Context, addr string, tlsConfig *tls.Config) (Transport, error)

// DialTCP is the default Dialer. It opens a TCP connection and, when
// tlsConfig is non-nil, completes a TLS handshake before returning.
func DialTCP(ctx context.Context, addr string, tlsConfig *tls.Config) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		tc := tls.Client(conn, tlsConfig)
		if err := tc.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
		conn = tc
	}
	return NewConnTransport(conn, wire.DefaultLimits()), nil
}

// ConnTransport is a Transport over a stream connection.
type ConnTransport struct {
	conn   net.Conn
	limits wire.Limits

	closeOnce sync.Once
	closeErr  error
}

// NewConnTransport wraps conn. Response frames larger than
// limits.MaxResponseBytes are rejected.
func NewConnTransport(conn net.Conn, limits wire.Limits) *ConnTransport {
	return &ConnTransport{conn: conn, limits: limits}
}

// SetLimits replaces the frame limits. It must not be called concurrently
// with RoundTrip.
func (t *ConnTransport) SetLimits(l wire.Limits) { t.limits = l }

// RoundTrip writes one request frame and reads one response frame. The
// context deadline becomes the connection deadline; cancelling ctx aborts
// pending I/O, which leaves the stream unusable.
func (t *ConnTransport) RoundTrip(ctx context.Context, body []byte) (wire.ResponseCode, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetDeadline(deadline); err != nil {
		return 0, nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		t.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := wire.WriteRequest(t.conn, body); err != nil {
		return 0, nil, t.contextErr(ctx, err)
	}
	code, payload, err := wire.ReadResponse(t.conn, t.limits)
	if err != nil {
		return code, nil, t.contextErr(ctx, err)
	}
	return code, payload, nil
}

func (t *ConnTransport) contextErr(ctx context.Context, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

// Close closes the connection. It is safe to call more than once.
func (t *ConnTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
