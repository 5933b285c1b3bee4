package propval

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them.
var (
	// ErrUnsupportedType is returned when a type discriminant has no
	// decoding rule.
	ErrUnsupportedType = errors.New("propval: unsupported property type")

	// ErrMalformedValue is returned when the payload does not match the
	// layout its type prescribes.
	ErrMalformedValue = errors.New("propval: malformed value")

	// ErrTypeMismatch is returned when a value's type differs from the type
	// encoded in its tag, or when a typed accessor is used on the wrong type.
	ErrTypeMismatch = errors.New("propval: type mismatch")
)

// ProtocolError describes a property that could not be decoded, or a
// value that cannot be represented on the wire. Op is "encode" or
// "decode"; empty means decode.
// It unwraps to ErrUnsupportedType or ErrMalformedValue.
type ProtocolError struct {
	Tag  Tag
	Type Type
	Op   string
	Err  error
}

func (e *ProtocolError) Error() string {
	op := e.Op
	if op == "" {
		op = "decode"
	}
	if e.Tag == 0 && e.Type == 0 {
		return fmt.Sprintf("propval: %s: %v", op, e.Err)
	}
	if e.Tag == 0 {
		return fmt.Sprintf("propval: %s %s: %v", op, e.Type, e.Err)
	}
	return fmt.Sprintf("propval: %s 0x%08x (%s): %v", op, uint32(e.Tag), e.Type, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func unsupported(tag Tag, t Type) error {
	return &ProtocolError{Tag: tag, Type: t, Err: ErrUnsupportedType}
}

func malformed(tag Tag, t Type, cause error) error {
	if cause == nil {
		return &ProtocolError{Tag: tag, Type: t, Err: ErrMalformedValue}
	}
	return &ProtocolError{Tag: tag, Type: t, Err: fmt.Errorf("%w: %w", ErrMalformedValue, cause)}
}

func unencodable(t Type, cause error) error {
	return &ProtocolError{Type: t, Op: "encode", Err: fmt.Errorf("%w: %w", ErrMalformedValue, cause)}
}
