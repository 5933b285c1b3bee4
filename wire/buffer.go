// Package wire implements the little-endian buffer encoding and the request
// and response framing used on an EXMDB connection.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
)

// Sentinel errors returned by Puller and the frame helpers.
var (
	ErrShortBuffer         = errors.New("wire: short buffer")
	ErrUnterminatedString  = errors.New("wire: unterminated string")
	ErrFrameTooLarge       = errors.New("wire: frame exceeds limit")
	ErrTrailingBytes       = errors.New("wire: trailing bytes after payload")
	ErrInvalidOptionalFlag = errors.New("wire: invalid optional flag")
	ErrEmbeddedNUL         = errors.New("wire: string contains NUL byte")
)

// CheckString returns ErrEmbeddedNUL when s cannot be sent as a
// NUL-terminated string.
func CheckString(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return ErrEmbeddedNUL
	}
	return nil
}

// Pusher appends little-endian encoded values to a growing buffer.
// The zero value is ready to use.
type Pusher struct {
	buf []byte
	err error
}

// NewPusher returns a Pusher with capacity preallocated.
func NewPusher(capacity int) *Pusher {
	return &Pusher{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes. The slice aliases the internal buffer.
func (p *Pusher) Bytes() []byte { return p.buf }

// Err returns the first error recorded while encoding. A Pusher with a
// non-nil Err holds an incomplete encoding and must not be sent.
func (p *Pusher) Err() error { return p.err }

// Len returns the number of encoded bytes.
func (p *Pusher) Len() int { return len(p.buf) }

func (p *Pusher) Uint8(v uint8) { p.buf = append(p.buf, v) }

func (p *Pusher) Uint16(v uint16) { p.buf = binary.LittleEndian.AppendUint16(p.buf, v) }

func (p *Pusher) Uint32(v uint32) { p.buf = binary.LittleEndian.AppendUint32(p.buf, v) }

func (p *Pusher) Uint64(v uint64) { p.buf = binary.LittleEndian.AppendUint64(p.buf, v) }

func (p *Pusher) Int16(v int16) { p.Uint16(uint16(v)) }

func (p *Pusher) Int32(v int32) { p.Uint32(uint32(v)) }

func (p *Pusher) Int64(v int64) { p.Uint64(uint64(v)) }

func (p *Pusher) Float32(v float32) { p.Uint32(math.Float32bits(v)) }

func (p *Pusher) Float64(v float64) { p.Uint64(math.Float64bits(v)) }

// Bool encodes v as a single byte, 1 for true.
func (p *Pusher) Bool(v bool) {
	if v {
		p.Uint8(1)
		return
	}
	p.Uint8(0)
}

// String encodes s followed by a NUL terminator. A string with an embedded
// NUL is not encoded and records ErrEmbeddedNUL in Err.
func (p *Pusher) String(s string) {
	if err := CheckString(s); err != nil {
		if p.err == nil {
			p.err = err
		}
		return
	}
	p.buf = append(p.buf, s...)
	p.buf = append(p.buf, 0)
}

// OptionalString encodes a presence flag followed by s when present.
func (p *Pusher) OptionalString(s *string) {
	if s == nil {
		p.Uint8(0)
		return
	}
	p.Uint8(1)
	p.String(*s)
}

// Binary encodes b with a uint32 length prefix.
func (p *Pusher) Binary(b []byte) {
	p.Uint32(uint32(len(b)))
	p.buf = append(p.buf, b...)
}

// Raw appends b without a length prefix.
func (p *Pusher) Raw(b []byte) { p.buf = append(p.buf, b...) }

// Puller decodes little-endian values from a byte slice.
type Puller struct {
	data []byte
	off  int
}

// NewPuller returns a Puller reading from data.
func NewPuller(data []byte) *Puller {
	return &Puller{data: data}
}

// Remaining returns the number of unread bytes.
func (p *Puller) Remaining() int { return len(p.data) - p.off }

// Offset returns the number of bytes consumed so far.
func (p *Puller) Offset() int { return p.off }

// Done returns ErrTrailingBytes if unread bytes remain.
func (p *Puller) Done() error {
	if p.Remaining() != 0 {
		return ErrTrailingBytes
	}
	return nil
}

func (p *Puller) next(n int) ([]byte, error) {
	if n < 0 || p.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := p.data[p.off : p.off+n]
	p.off += n
	return b, nil
}

func (p *Puller) Uint8() (uint8, error) {
	b, err := p.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (p *Puller) Uint16() (uint16, error) {
	b, err := p.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (p *Puller) Uint32() (uint32, error) {
	b, err := p.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (p *Puller) Uint64() (uint64, error) {
	b, err := p.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (p *Puller) Int16() (int16, error) {
	v, err := p.Uint16()
	return int16(v), err
}

func (p *Puller) Int32() (int32, error) {
	v, err := p.Uint32()
	return int32(v), err
}

func (p *Puller) Int64() (int64, error) {
	v, err := p.Uint64()
	return int64(v), err
}

func (p *Puller) Float32() (float32, error) {
	v, err := p.Uint32()
	return math.Float32frombits(v), err
}

func (p *Puller) Float64() (float64, error) {
	v, err := p.Uint64()
	return math.Float64frombits(v), err
}

// Bool decodes a single byte; any non-zero value is true.
func (p *Puller) Bool() (bool, error) {
	v, err := p.Uint8()
	return v != 0, err
}

// String decodes a NUL-terminated string.
func (p *Puller) String() (string, error) {
	i := bytes.IndexByte(p.data[p.off:], 0)
	if i < 0 {
		return "", ErrUnterminatedString
	}
	s := string(p.data[p.off : p.off+i])
	p.off += i + 1
	return s, nil
}

// OptionalString decodes a presence flag and, if set, a string.
func (p *Puller) OptionalString() (*string, error) {
	flag, err := p.Uint8()
	if err != nil {
		return nil, err
	}
	switch flag {
	case 0:
		return nil, nil
	case 1:
		s, err := p.String()
		if err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, ErrInvalidOptionalFlag
	}
}

// Binary decodes a uint32 length prefix and that many bytes. The result is
// a copy and does not alias the input.
func (p *Puller) Binary() ([]byte, error) {
	n, err := p.Uint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(p.Remaining()) {
		return nil, ErrShortBuffer
	}
	b, _ := p.next(int(n))
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Raw decodes exactly n bytes without a length prefix. The result is a copy.
func (p *Puller) Raw(n int) ([]byte, error) {
	b, err := p.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
