package propval

import (
	"bytes"
	"fmt"
	"time"

	"github.com/rbaliyan/exmdb/wire"
)

// TaggedPropval is a single property: a tag and a value whose type matches
// the tag's type.
type TaggedPropval struct {
	Tag   Tag
	Value Value
}

// New returns a TaggedPropval after checking that v's type matches the
// type encoded in tag.
func New(tag Tag, v Value) (TaggedPropval, error) {
	if v == nil {
		return TaggedPropval{}, ErrNilValue
	}
	if v.Type() != tag.Type() {
		return TaggedPropval{}, fmt.Errorf("%w: tag %s carries %s, value is %s",
			ErrTypeMismatch, tag, tag.Type(), v.Type())
	}
	return TaggedPropval{Tag: tag, Value: v}, nil
}

// MustNew is like New but panics on a type mismatch. It is intended for
// package-level literals with well-known tags.
func MustNew(tag Tag, v Value) TaggedPropval {
	tp, err := New(tag, v)
	if err != nil {
		panic(err)
	}
	return tp
}

// Type returns the type encoded in the tag.
func (tp TaggedPropval) Type() Type { return tp.Tag.Type() }

func (tp TaggedPropval) mismatch(want string) error {
	return fmt.Errorf("%w: %s is %s, not %s", ErrTypeMismatch, tp.Tag, tp.Tag.Type(), want)
}

// Int64 returns integer payloads (short, long, i8, currency) widened to
// int64.
func (tp TaggedPropval) Int64() (int64, error) {
	switch v := tp.Value.(type) {
	case Short:
		return int64(v), nil
	case Long:
		return int64(v), nil
	case I8:
		return int64(v), nil
	case Currency:
		return int64(v), nil
	}
	return 0, tp.mismatch("an integer")
}

// Uint64 returns an i8 payload as unsigned, the form used by folder and
// message ids.
func (tp TaggedPropval) Uint64() (uint64, error) {
	if v, ok := tp.Value.(I8); ok {
		return uint64(v), nil
	}
	return 0, tp.mismatch(PtI8.String())
}

// Text returns string8 and unicode payloads.
func (tp TaggedPropval) Text() (string, error) {
	switch v := tp.Value.(type) {
	case Unicode:
		return string(v), nil
	case String8:
		return string(v), nil
	}
	return "", tp.mismatch("a string")
}

// Bytes returns binary and object payloads.
func (tp TaggedPropval) Bytes() ([]byte, error) {
	switch v := tp.Value.(type) {
	case Binary:
		return v, nil
	case Object:
		return v, nil
	}
	return nil, tp.mismatch(PtBinary.String())
}

// Bool returns a boolean payload.
func (tp TaggedPropval) Bool() (bool, error) {
	if v, ok := tp.Value.(Bool); ok {
		return bool(v), nil
	}
	return false, tp.mismatch(PtBoolean.String())
}

// Time returns a systime payload as a UTC time.
func (tp TaggedPropval) Time() (time.Time, error) {
	if v, ok := tp.Value.(SysTime); ok {
		return v.Time(), nil
	}
	return time.Time{}, tp.mismatch(PtSysTime.String())
}

// Strings returns multi-valued string payloads.
func (tp TaggedPropval) Strings() ([]string, error) {
	switch v := tp.Value.(type) {
	case MVUnicode:
		return v, nil
	case MVString8:
		return v, nil
	}
	return nil, tp.mismatch("a string list")
}

// MarshalBinary encodes tp in wire form: tag then payload.
func (tp TaggedPropval) MarshalBinary() ([]byte, error) {
	p := wire.NewPusher(16)
	if err := Push(p, tp); err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

// UnmarshalBinary decodes exactly one tagged value from data.
func (tp *TaggedPropval) UnmarshalBinary(data []byte) error {
	r := wire.NewPuller(data)
	v, err := Pull(r)
	if err != nil {
		return err
	}
	if err := r.Done(); err != nil {
		return malformed(v.Tag, v.Tag.Type(), err)
	}
	*tp = v
	return nil
}

// Equal reports whether a and b have the same tag and encode to the same
// bytes.
func Equal(a, b TaggedPropval) bool {
	if a.Tag != b.Tag {
		return false
	}
	ab, errA := a.MarshalBinary()
	bb, errB := b.MarshalBinary()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Row is an ordered list of properties as returned for one table row.
type Row []TaggedPropval

// Find returns the first value with the given tag.
func (r Row) Find(tag Tag) (TaggedPropval, bool) {
	for _, tp := range r {
		if tp.Tag == tag {
			return tp, true
		}
	}
	return TaggedPropval{}, false
}

// Text returns the string value for tag, or "" if it is absent or not a
// string.
func (r Row) Text(tag Tag) string {
	tp, ok := r.Find(tag)
	if !ok {
		return ""
	}
	s, _ := tp.Text()
	return s
}

// Uint64 returns the i8 value for tag, or 0 if it is absent or not an i8.
func (r Row) Uint64(tag Tag) uint64 {
	tp, ok := r.Find(tag)
	if !ok {
		return 0
	}
	v, _ := tp.Uint64()
	return v
}
