package exmdb

import (
	"errors"
	"strings"
	"testing"

	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/wire"
)

func TestConnectError(t *testing.T) {
	t.Run("matches ErrConnect and cause", func(t *testing.T) {
		err := &ConnectError{Addr: "db:5000", Code: wire.CodeAccessDeny, Err: ErrAuth}
		if !errors.Is(err, ErrConnect) {
			t.Error("expected errors.Is ErrConnect")
		}
		if !errors.Is(err, ErrAuth) {
			t.Error("expected errors.Is ErrAuth")
		}
		if errors.Is(err, ErrTransport) {
			t.Error("connect error must not match ErrTransport")
		}
	})

	t.Run("message includes code", func(t *testing.T) {
		err := &ConnectError{Addr: "db:5000", Code: wire.CodeMisconfigPrefix, Err: ErrMisconfigured}
		msg := err.Error()
		for _, part := range []string{"db:5000", "misconfig_prefix"} {
			if !strings.Contains(msg, part) {
				t.Errorf("expected %q in %q", part, msg)
			}
		}
	})

	t.Run("retryable", func(t *testing.T) {
		tests := []struct {
			name string
			err  *ConnectError
			want bool
		}{
			{"network", &ConnectError{Err: networkError(errors.New("refused"))}, true},
			{"max reached", &ConnectError{Code: wire.CodeMaxReached, Err: ErrServer}, true},
			{"lack memory", &ConnectError{Code: wire.CodeLackMemory, Err: ErrServer}, true},
			{"access denied", &ConnectError{Code: wire.CodeAccessDeny, Err: ErrAuth}, false},
			{"misconfigured", &ConnectError{Code: wire.CodeMisconfigMode, Err: ErrMisconfigured}, false},
			{"invalid argument", &ConnectError{Err: ErrInvalidArgument}, false},
		}
		for _, tt := range tests {
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("%s: Retryable() = %v, want %v", tt.name, got, tt.want)
			}
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("%s: IsRetryableError() = %v, want %v", tt.name, got, tt.want)
			}
		}
	})
}

func TestTransportError(t *testing.T) {
	t.Run("server code", func(t *testing.T) {
		err := &TransportError{Call: CallQueryTable, Code: wire.CodeDispatchError, Err: codeError(wire.CodeDispatchError)}
		if !errors.Is(err, ErrTransport) || !errors.Is(err, ErrServer) {
			t.Errorf("unexpected chain for %v", err)
		}
		if msg := err.Error(); !strings.Contains(msg, "query_table") || !strings.Contains(msg, "dispatch_error") {
			t.Errorf("unexpected message %q", msg)
		}
		if IsRetryableError(err) {
			t.Error("dispatch errors are not retryable")
		}
	})

	t.Run("network", func(t *testing.T) {
		cause := errors.New("broken pipe")
		err := &TransportError{Call: CallPingStore, Err: networkError(cause)}
		if !errors.Is(err, ErrNetwork) || !errors.Is(err, cause) {
			t.Errorf("unexpected chain for %v", err)
		}
		if !IsRetryableError(err) {
			t.Error("network failures should be retryable with a new client")
		}
	})
}

func TestCodeError(t *testing.T) {
	tests := []struct {
		code wire.ResponseCode
		want error
	}{
		{wire.CodeAccessDeny, ErrAuth},
		{wire.CodeMisconfigPrefix, ErrMisconfigured},
		{wire.CodeMisconfigMode, ErrMisconfigured},
		{wire.CodeMaxReached, ErrServer},
		{wire.CodePullError, ErrServer},
	}
	for _, tt := range tests {
		if got := codeError(tt.code); got != tt.want {
			t.Errorf("codeError(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNetworkErrorIdempotent(t *testing.T) {
	err := networkError(networkError(errors.New("x")))
	if strings.Count(err.Error(), ErrNetwork.Error()) != 1 {
		t.Errorf("ErrNetwork wrapped twice: %v", err)
	}
}

func TestQueryError(t *testing.T) {
	err := invalidArgument("create folder", "/A", "property %s: %v", propval.TagComment, "bad")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T", err)
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Error("expected ErrInvalidArgument")
	}
	if qe.Op != "create folder" || qe.Path != "/A" {
		t.Errorf("unexpected fields %+v", qe)
	}
	if msg := err.Error(); !strings.Contains(msg, `"/A"`) {
		t.Errorf("expected quoted path in %q", msg)
	}

	plain := queryError("resolve", "", ErrNotFound)
	if msg := plain.Error(); msg != "exmdb: resolve: exmdb: not found" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestEventPublishError(t *testing.T) {
	cause := errors.New("redis down")
	err := &EventPublishError{Event: "FolderCreated", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected cause to unwrap")
	}
	if !strings.Contains(err.Error(), "FolderCreated") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
