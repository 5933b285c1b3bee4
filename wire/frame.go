package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ResponseCode is the status byte that opens every response frame.
type ResponseCode uint8

// Response codes sent by the store server.
const (
	CodeSuccess           ResponseCode = 0x00
	CodeAccessDeny        ResponseCode = 0x01
	CodeMaxReached        ResponseCode = 0x02
	CodeLackMemory        ResponseCode = 0x03
	CodeMisconfigPrefix   ResponseCode = 0x04
	CodeMisconfigMode     ResponseCode = 0x05
	CodeConnectIncomplete ResponseCode = 0x06
	CodePullError         ResponseCode = 0x07
	CodeDispatchError     ResponseCode = 0x08
	CodePushError         ResponseCode = 0x09
)

var codeNames = map[ResponseCode]string{
	CodeSuccess:           "success",
	CodeAccessDeny:        "access_deny",
	CodeMaxReached:        "max_reached",
	CodeLackMemory:        "lack_memory",
	CodeMisconfigPrefix:   "misconfig_prefix",
	CodeMisconfigMode:     "misconfig_mode",
	CodeConnectIncomplete: "connect_incomplete",
	CodePullError:         "pull_error",
	CodeDispatchError:     "dispatch_error",
	CodePushError:         "push_error",
}

func (c ResponseCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(c))
}

// Limits bound the size of frames read from the peer.
type Limits struct {
	MaxRequestBytes  uint32
	MaxResponseBytes uint32
}

// DefaultLimits returns limits large enough for hierarchy tables of
// realistic stores.
func DefaultLimits() Limits {
	return Limits{
		MaxRequestBytes:  16 << 20,
		MaxResponseBytes: 64 << 20,
	}
}

// EncodeRequest prefixes body with its uint32 length.
func EncodeRequest(body []byte) []byte {
	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	return append(out, body...)
}

// WriteRequest writes a length-prefixed request frame.
func WriteRequest(w io.Writer, body []byte) error {
	_, err := w.Write(EncodeRequest(body))
	return err
}

// ReadRequest reads a length-prefixed request frame and returns its body.
func ReadRequest(r io.Reader, lim Limits) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if lim.MaxRequestBytes > 0 && n > lim.MaxRequestBytes {
		return nil, fmt.Errorf("%w: request of %d bytes", ErrFrameTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// EncodeResponse builds a response frame. Payload is only sent with
// CodeSuccess.
func EncodeResponse(code ResponseCode, payload []byte) []byte {
	if code != CodeSuccess {
		return []byte{byte(code)}
	}
	out := make([]byte, 5, 5+len(payload))
	out[0] = byte(code)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(payload)))
	return append(out, payload...)
}

// ReadResponse reads one response frame. A non-success code is returned
// with a nil payload and nil error; callers decide how to map it.
func ReadResponse(r io.Reader, lim Limits) (ResponseCode, []byte, error) {
	var code [1]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return 0, nil, err
	}
	rc := ResponseCode(code[0])
	if rc != CodeSuccess {
		return rc, nil, nil
	}
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return rc, nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if lim.MaxResponseBytes > 0 && n > lim.MaxResponseBytes {
		return rc, nil, fmt.Errorf("%w: response of %d bytes", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return rc, nil, err
	}
	return rc, payload, nil
}

// DecodeResponse splits an in-memory response frame.
func DecodeResponse(frame []byte) (ResponseCode, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, ErrShortBuffer
	}
	rc := ResponseCode(frame[0])
	if rc != CodeSuccess {
		if len(frame) != 1 {
			return rc, nil, ErrTrailingBytes
		}
		return rc, nil, nil
	}
	if len(frame) < 5 {
		return rc, nil, ErrShortBuffer
	}
	n := binary.LittleEndian.Uint32(frame[1:5])
	if uint64(n) != uint64(len(frame)-5) {
		if uint64(n) > uint64(len(frame)-5) {
			return rc, nil, ErrShortBuffer
		}
		return rc, nil, ErrTrailingBytes
	}
	return rc, frame[5:], nil
}
