package exmdb

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/wire"
)

// Sentinel errors for the exmdb package.
// Use errors.Is() to check for these errors.
var (
	// ErrConnect matches every *ConnectError.
	ErrConnect = errors.New("exmdb: connect failed")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("exmdb: transport failed")

	// ErrNetwork is wrapped by connect and transport errors caused by
	// socket I/O, dial failures and timeouts.
	ErrNetwork = errors.New("exmdb: network failure")

	// ErrAuth is returned when the server denies access to the store.
	ErrAuth = errors.New("exmdb: access denied")

	// ErrMisconfigured is returned when the server rejects the store prefix
	// or the private/public mode of the handshake.
	ErrMisconfigured = errors.New("exmdb: server rejected store configuration")

	// ErrServer is wrapped by transport errors carrying a non-success
	// response code.
	ErrServer = errors.New("exmdb: server error")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("exmdb: client closed")

	// ErrNotFound is returned when a folder path does not resolve.
	ErrNotFound = errors.New("exmdb: not found")

	// ErrAlreadyExists is returned when creating a folder whose name is
	// taken under the parent.
	ErrAlreadyExists = errors.New("exmdb: already exists")

	// ErrInvalidArgument is returned when required input is missing or
	// malformed.
	ErrInvalidArgument = errors.New("exmdb: invalid argument")

	// ErrUnsupportedType and ErrMalformedValue are the decode failures of
	// the property codec.
	ErrUnsupportedType = propval.ErrUnsupportedType
	ErrMalformedValue  = propval.ErrMalformedValue
)

// ProtocolError describes a property or response payload that could not be
// decoded.
type ProtocolError = propval.ProtocolError

// ConnectError is returned by Connect when the transport cannot be
// established or the handshake is refused.
type ConnectError struct {
	Addr string
	// Code is the handshake response code, or CodeSuccess when the failure
	// happened before a response was read.
	Code wire.ResponseCode
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Code != wire.CodeSuccess {
		return fmt.Sprintf("exmdb: connect %s: %s: %v", e.Addr, e.Code, e.Err)
	}
	return fmt.Sprintf("exmdb: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func (e *ConnectError) Is(target error) bool {
	return target == ErrConnect
}

// Retryable reports whether a new connection attempt may succeed without
// changing configuration. Network failures and server resource limits are
// retryable; authentication and configuration failures are not.
func (e *ConnectError) Retryable() bool {
	switch e.Code {
	case wire.CodeMaxReached, wire.CodeLackMemory:
		return true
	case wire.CodeSuccess:
		return errors.Is(e.Err, ErrNetwork)
	}
	return false
}

// TransportError is returned when a request could not be completed: the
// connection failed, the response frame was malformed, or the server
// answered with a non-success code. A client that produced a TransportError
// is failed and returns the same error from every later call.
type TransportError struct {
	Call CallID
	Code wire.ResponseCode
	Err  error
}

func (e *TransportError) Error() string {
	if e.Code != wire.CodeSuccess {
		return fmt.Sprintf("exmdb: %s: server returned %s", e.Call, e.Code)
	}
	return fmt.Sprintf("exmdb: %s: %v", e.Call, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// QueryError is returned by the folder operations for well-formed exchanges
// that fail semantically. Err is ErrNotFound, ErrAlreadyExists or
// ErrInvalidArgument.
type QueryError struct {
	Op   string
	Path string
	Err  error
}

func (e *QueryError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("exmdb: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("exmdb: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsRetryableError reports whether err is a connection failure worth
// retrying with a fresh Connect.
func IsRetryableError(err error) bool {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	// A failed client is never reused, but a new connection may succeed.
	var te *TransportError
	if errors.As(err, &te) {
		return errors.Is(te.Err, ErrNetwork) || te.Code == wire.CodeMaxReached || te.Code == wire.CodeLackMemory
	}
	return false
}

func codeError(code wire.ResponseCode) error {
	switch code {
	case wire.CodeAccessDeny:
		return ErrAuth
	case wire.CodeMisconfigPrefix, wire.CodeMisconfigMode:
		return ErrMisconfigured
	}
	return ErrServer
}

func networkError(err error) error {
	if errors.Is(err, ErrNetwork) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func queryError(op, path string, err error) error {
	return &QueryError{Op: op, Path: path, Err: err}
}

func invalidArgument(op, path string, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return queryError(op, path, fmt.Errorf("%w: %s", ErrInvalidArgument, msg))
}
