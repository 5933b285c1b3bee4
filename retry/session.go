package retry

import (
	"context"
	"sync"

	"github.com/rbaliyan/exmdb"
)

// DialFunc opens a new client.
type DialFunc func(ctx context.Context) (*exmdb.Client, error)

// Session owns one client at a time and dials a replacement, under its
// policy, once the current client has failed. Safe for concurrent use.
type Session struct {
	dial   DialFunc
	policy Policy

	mu     sync.Mutex
	client *exmdb.Client
	closed bool
	dials  int
}

// NewSession creates a session. No connection is made until first use.
func NewSession(dial DialFunc, p Policy) *Session {
	return &Session{dial: dial, policy: p}
}

// Client returns a usable client, dialing when there is none or the
// current one has failed.
func (s *Session) Client(ctx context.Context) (*exmdb.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, exmdb.ErrClosed
	}
	if s.client != nil && !s.client.Failed() {
		return s.client, nil
	}
	if s.client != nil {
		s.client.Close(ctx)
		s.client = nil
	}

	c, err := DoWithResult(ctx, s.policy, func(ctx context.Context) (*exmdb.Client, error) {
		s.dials++
		return s.dial(ctx)
	})
	if err != nil {
		return nil, err
	}
	s.client = c
	return c, nil
}

// Dials returns the number of dial attempts made so far.
func (s *Session) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Close closes the current client. Later calls to Client fail with
// exmdb.ErrClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.client == nil {
		return nil
	}
	err := s.client.Close(ctx)
	s.client = nil
	return err
}

// Run calls fn with the session's client. When fn fails with a retryable
// error the failed client is replaced and fn is called again, under the
// session policy.
//
// fn may run more than once. An operation that is not idempotent, such
// as exmdb.CreatePublicFolder, can report exmdb.ErrAlreadyExists on a
// later attempt when an earlier one took effect before the connection
// broke.
func Run[T any](ctx context.Context, s *Session, fn func(ctx context.Context, c *exmdb.Client) (T, error)) (T, error) {
	return DoWithResult(ctx, s.policy, func(ctx context.Context) (T, error) {
		c, err := s.Client(ctx)
		if err != nil {
			var zero T
			// The dial already retried under the same policy.
			return zero, MarkNotRetryable(err)
		}
		return fn(ctx, c)
	})
}
