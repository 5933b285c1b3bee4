package wire

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestPusherPuller(t *testing.T) {
	t.Run("scalars round trip", func(t *testing.T) {
		p := NewPusher(64)
		p.Uint8(0xAB)
		p.Uint16(0x1234)
		p.Uint32(0xDEADBEEF)
		p.Uint64(0x0102030405060708)
		p.Int16(-2)
		p.Int32(-3)
		p.Int64(math.MinInt64)
		p.Float32(1.5)
		p.Float64(-2.25)
		p.Bool(true)
		p.Bool(false)

		r := NewPuller(p.Bytes())
		if v, _ := r.Uint8(); v != 0xAB {
			t.Errorf("uint8: got %#x", v)
		}
		if v, _ := r.Uint16(); v != 0x1234 {
			t.Errorf("uint16: got %#x", v)
		}
		if v, _ := r.Uint32(); v != 0xDEADBEEF {
			t.Errorf("uint32: got %#x", v)
		}
		if v, _ := r.Uint64(); v != 0x0102030405060708 {
			t.Errorf("uint64: got %#x", v)
		}
		if v, _ := r.Int16(); v != -2 {
			t.Errorf("int16: got %d", v)
		}
		if v, _ := r.Int32(); v != -3 {
			t.Errorf("int32: got %d", v)
		}
		if v, _ := r.Int64(); v != math.MinInt64 {
			t.Errorf("int64: got %d", v)
		}
		if v, _ := r.Float32(); v != 1.5 {
			t.Errorf("float32: got %v", v)
		}
		if v, _ := r.Float64(); v != -2.25 {
			t.Errorf("float64: got %v", v)
		}
		if v, _ := r.Bool(); !v {
			t.Error("bool: expected true")
		}
		if v, _ := r.Bool(); v {
			t.Error("bool: expected false")
		}
		if err := r.Done(); err != nil {
			t.Errorf("expected all bytes consumed, got %v", err)
		}
	})

	t.Run("little endian layout", func(t *testing.T) {
		p := &Pusher{}
		p.Uint32(0x3001001F)
		want := []byte{0x1F, 0x00, 0x01, 0x30}
		if !bytes.Equal(p.Bytes(), want) {
			t.Errorf("got % x, want % x", p.Bytes(), want)
		}
	})

	t.Run("strings and binaries", func(t *testing.T) {
		p := &Pusher{}
		p.String("Projects")
		p.String("")
		s := "opt"
		p.OptionalString(&s)
		p.OptionalString(nil)
		p.Binary([]byte{1, 2, 3})

		r := NewPuller(p.Bytes())
		if v, err := r.String(); err != nil || v != "Projects" {
			t.Errorf("string: got %q, %v", v, err)
		}
		if v, err := r.String(); err != nil || v != "" {
			t.Errorf("empty string: got %q, %v", v, err)
		}
		if v, err := r.OptionalString(); err != nil || v == nil || *v != "opt" {
			t.Errorf("optional string: got %v, %v", v, err)
		}
		if v, err := r.OptionalString(); err != nil || v != nil {
			t.Errorf("absent optional string: got %v, %v", v, err)
		}
		if v, err := r.Binary(); err != nil || !bytes.Equal(v, []byte{1, 2, 3}) {
			t.Errorf("binary: got %v, %v", v, err)
		}
	})

	t.Run("short buffer", func(t *testing.T) {
		r := NewPuller([]byte{1, 2, 3})
		if _, err := r.Uint32(); !errors.Is(err, ErrShortBuffer) {
			t.Errorf("expected ErrShortBuffer, got %v", err)
		}
	})

	t.Run("binary length beyond buffer", func(t *testing.T) {
		p := &Pusher{}
		p.Uint32(100)
		p.Raw([]byte{1, 2})
		if _, err := NewPuller(p.Bytes()).Binary(); !errors.Is(err, ErrShortBuffer) {
			t.Errorf("expected ErrShortBuffer, got %v", err)
		}
	})

	t.Run("unterminated string", func(t *testing.T) {
		if _, err := NewPuller([]byte("abc")).String(); !errors.Is(err, ErrUnterminatedString) {
			t.Errorf("expected ErrUnterminatedString, got %v", err)
		}
	})

	t.Run("invalid optional flag", func(t *testing.T) {
		if _, err := NewPuller([]byte{7}).OptionalString(); !errors.Is(err, ErrInvalidOptionalFlag) {
			t.Errorf("expected ErrInvalidOptionalFlag, got %v", err)
		}
	})

	t.Run("embedded NUL", func(t *testing.T) {
		if err := CheckString("Arch\x00ive"); !errors.Is(err, ErrEmbeddedNUL) {
			t.Errorf("CheckString: expected ErrEmbeddedNUL, got %v", err)
		}
		if err := CheckString("Archive"); err != nil {
			t.Errorf("CheckString: unexpected error %v", err)
		}

		p := NewPusher(16)
		p.String("ok")
		p.String("x\x00y")
		s := "a\x00"
		p.OptionalString(&s)
		p.String("later")
		if !errors.Is(p.Err(), ErrEmbeddedNUL) {
			t.Fatalf("Err: expected ErrEmbeddedNUL, got %v", p.Err())
		}
		if bytes.IndexByte(p.Bytes(), 'x') >= 0 {
			t.Errorf("rejected string was encoded: %q", p.Bytes())
		}
		if (&Pusher{}).Err() != nil {
			t.Error("zero Pusher must have no error")
		}
	})
}

func TestFrames(t *testing.T) {
	t.Run("request round trip", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteRequest(&buf, []byte("hello")); err != nil {
			t.Fatalf("write: %v", err)
		}
		body, err := ReadRequest(&buf, DefaultLimits())
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(body) != "hello" {
			t.Errorf("got %q", body)
		}
	})

	t.Run("request over limit", func(t *testing.T) {
		frame := EncodeRequest(make([]byte, 32))
		_, err := ReadRequest(bytes.NewReader(frame), Limits{MaxRequestBytes: 16})
		if !errors.Is(err, ErrFrameTooLarge) {
			t.Errorf("expected ErrFrameTooLarge, got %v", err)
		}
	})

	t.Run("success response", func(t *testing.T) {
		frame := EncodeResponse(CodeSuccess, []byte{9, 8})
		code, payload, err := ReadResponse(bytes.NewReader(frame), DefaultLimits())
		if err != nil || code != CodeSuccess || !bytes.Equal(payload, []byte{9, 8}) {
			t.Errorf("got code=%v payload=%v err=%v", code, payload, err)
		}
		code, payload, err = DecodeResponse(frame)
		if err != nil || code != CodeSuccess || !bytes.Equal(payload, []byte{9, 8}) {
			t.Errorf("decode: got code=%v payload=%v err=%v", code, payload, err)
		}
	})

	t.Run("error response carries no payload", func(t *testing.T) {
		frame := EncodeResponse(CodeAccessDeny, []byte{1})
		if len(frame) != 1 {
			t.Fatalf("expected 1-byte frame, got %d", len(frame))
		}
		code, payload, err := ReadResponse(bytes.NewReader(frame), DefaultLimits())
		if err != nil || code != CodeAccessDeny || payload != nil {
			t.Errorf("got code=%v payload=%v err=%v", code, payload, err)
		}
	})

	t.Run("truncated response", func(t *testing.T) {
		frame := EncodeResponse(CodeSuccess, []byte{1, 2, 3})
		if _, _, err := DecodeResponse(frame[:6]); !errors.Is(err, ErrShortBuffer) {
			t.Errorf("expected ErrShortBuffer, got %v", err)
		}
	})
}

func TestResponseCodeString(t *testing.T) {
	if CodeMisconfigPrefix.String() != "misconfig_prefix" {
		t.Errorf("got %q", CodeMisconfigPrefix.String())
	}
	if ResponseCode(0x42).String() != "unknown(0x42)" {
		t.Errorf("got %q", ResponseCode(0x42).String())
	}
}
