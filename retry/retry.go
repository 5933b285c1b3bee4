// Package retry reconnects to store servers with exponential backoff.
//
// A failed exmdb.Client is never reused, so recovering from a transport
// failure means dialing again. Connect retries the dial and handshake;
// Session keeps one client and replaces it once it has failed.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rbaliyan/exmdb"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxRetries is the number of attempts after the first (default: 3).
	// Zero means a single attempt.
	MaxRetries int

	// InitialBackoff is the delay before the first retry (default: 100ms).
	InitialBackoff time.Duration

	// MaxBackoff caps the delay (default: 30s).
	MaxBackoff time.Duration

	// Multiplier grows the delay after each retry (default: 2.0).
	Multiplier float64

	// Jitter randomizes the delay by +/- the given fraction (default: 0.1).
	Jitter float64

	// IsRetryable decides whether err warrants another attempt. The
	// default is DefaultIsRetryable.
	IsRetryable func(error) bool

	// OnRetry, when set, is called before sleeping for the next attempt.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultPolicy returns a Policy with the default values.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
		IsRetryable:    DefaultIsRetryable,
	}
}

// Sentinel errors carried by *Error.
var (
	// ErrNotRetryable means the last error was permanent.
	ErrNotRetryable = errors.New("retry: error is not retryable")

	// ErrMaxRetries means every attempt failed.
	ErrMaxRetries = errors.New("retry: max retries exceeded")

	// ErrContextCanceled means ctx ended between attempts.
	ErrContextCanceled = errors.New("retry: context canceled")
)

// Error reports a failed retry loop.
type Error struct {
	// Cause is the error of the last attempt.
	Cause error

	// Attempts is the number of attempts made.
	Attempts int

	// Err is ErrMaxRetries, ErrNotRetryable or ErrContextCanceled.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retry failed after %d attempts (%s): %s", e.Attempts, e.Err, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target) || errors.Is(e.Cause, target)
}

// Do calls fn until it succeeds, returns a permanent error, the attempts
// are used up, or ctx ends.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = applyDefaults(p)

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return &Error{Cause: lastErr, Attempts: attempt, Err: ErrContextCanceled}
			}
			return ctx.Err()
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !p.IsRetryable(err) {
			return &Error{Cause: err, Attempts: attempt + 1, Err: ErrNotRetryable}
		}
		if attempt == p.MaxRetries {
			break
		}

		backoff := p.backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, backoff)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Error{Cause: lastErr, Attempts: attempt + 1, Err: ErrContextCanceled}
		case <-timer.C:
		}
	}

	return &Error{Cause: lastErr, Attempts: p.MaxRetries + 1, Err: ErrMaxRetries}
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}

// Connect calls exmdb.Connect under p. Refused handshakes for access or
// configuration reasons are not retried.
func Connect(ctx context.Context, p Policy, host string, port uint16, prefix string, secure bool, opts ...exmdb.Option) (*exmdb.Client, error) {
	return DoWithResult(ctx, p, func(ctx context.Context) (*exmdb.Client, error) {
		return exmdb.Connect(ctx, host, port, prefix, secure, opts...)
	})
}

// backoff returns the delay after the given zero-based attempt.
func (p Policy) backoff(attempt int) time.Duration {
	d := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		spread := d * p.Jitter
		d = d - spread + rand.Float64()*2*spread
	}
	return time.Duration(d)
}

func applyDefaults(p Policy) Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	p.Jitter = min(max(p.Jitter, 0), 1)
	if p.IsRetryable == nil {
		p.IsRetryable = DefaultIsRetryable
	}
	return p
}

// DefaultIsRetryable retries network failures and server resource limits,
// as classified by exmdb.IsRetryableError, and errors marked with
// MarkRetryable. Everything else, including query and protocol errors, is
// permanent.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return exmdb.IsRetryableError(err)
}

// MarkNotRetryable wraps err so that DefaultIsRetryable rejects it.
func MarkNotRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &marked{cause: err, retryable: false}
}

// MarkRetryable wraps err so that DefaultIsRetryable accepts it.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &marked{cause: err, retryable: true}
}

type marked struct {
	cause     error
	retryable bool
}

func (e *marked) Error() string   { return e.cause.Error() }
func (e *marked) Unwrap() error   { return e.cause }
func (e *marked) Retryable() bool { return e.retryable }
