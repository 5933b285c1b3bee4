package propval

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/exmdb/wire"
)

// ErrNilValue is returned when encoding a TaggedPropval without a payload.
var ErrNilValue = errors.New("propval: nil value")

// PushValue encodes v without its tag. A string containing a NUL byte
// cannot be encoded and yields a *ProtocolError wrapping ErrMalformedValue.
func PushValue(p *wire.Pusher, v Value) error {
	switch v := v.(type) {
	case Short:
		p.Int16(int16(v))
	case Long:
		p.Int32(int32(v))
	case Float:
		p.Float32(float32(v))
	case Double:
		p.Float64(float64(v))
	case Currency:
		p.Int64(int64(v))
	case AppTime:
		p.Float64(float64(v))
	case ErrorCode:
		p.Uint32(uint32(v))
	case Bool:
		p.Bool(bool(v))
	case Object:
		p.Binary(v)
	case I8:
		p.Int64(int64(v))
	case String8:
		if err := wire.CheckString(string(v)); err != nil {
			return unencodable(v.Type(), err)
		}
		p.String(string(v))
	case Unicode:
		if err := wire.CheckString(string(v)); err != nil {
			return unencodable(v.Type(), err)
		}
		p.String(string(v))
	case SysTime:
		p.Uint64(uint64(v))
	case GUID:
		p.Raw(v[:])
	case Binary:
		p.Binary(v)
	case MVShort:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Int16(e)
		}
	case MVLong:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Int32(e)
		}
	case MVFloat:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Float32(e)
		}
	case MVDouble:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Float64(e)
		}
	case MVCurrency:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Int64(e)
		}
	case MVAppTime:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Float64(e)
		}
	case MVI8:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Int64(e)
		}
	case MVString8:
		for _, e := range v {
			if err := wire.CheckString(e); err != nil {
				return unencodable(v.Type(), err)
			}
		}
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.String(e)
		}
	case MVUnicode:
		for _, e := range v {
			if err := wire.CheckString(e); err != nil {
				return unencodable(v.Type(), err)
			}
		}
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.String(e)
		}
	case MVSysTime:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Uint64(uint64(e))
		}
	case MVGUID:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Raw(e[:])
		}
	case MVBinary:
		p.Uint32(uint32(len(v)))
		for _, e := range v {
			p.Binary(e)
		}
	case nil:
		return ErrNilValue
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return nil
}

// PullValue decodes a payload of type t. Errors are *ProtocolError.
func PullValue(r *wire.Puller, t Type) (Value, error) {
	return pullValue(r, 0, t)
}

func pullValue(r *wire.Puller, tag Tag, t Type) (Value, error) {
	if !t.Supported() {
		return nil, unsupported(tag, t)
	}
	v, err := decode(r, t)
	if err != nil {
		return nil, malformed(tag, t, err)
	}
	return v, nil
}

func decode(r *wire.Puller, t Type) (Value, error) {
	switch t {
	case PtShort:
		v, err := r.Int16()
		return Short(v), err
	case PtLong:
		v, err := r.Int32()
		return Long(v), err
	case PtFloat:
		v, err := r.Float32()
		return Float(v), err
	case PtDouble:
		v, err := r.Float64()
		return Double(v), err
	case PtCurrency:
		v, err := r.Int64()
		return Currency(v), err
	case PtAppTime:
		v, err := r.Float64()
		return AppTime(v), err
	case PtError:
		v, err := r.Uint32()
		return ErrorCode(v), err
	case PtBoolean:
		v, err := r.Bool()
		return Bool(v), err
	case PtObject:
		v, err := r.Binary()
		return Object(v), err
	case PtI8:
		v, err := r.Int64()
		return I8(v), err
	case PtString8:
		v, err := r.String()
		return String8(v), err
	case PtUnicode:
		v, err := r.String()
		return Unicode(v), err
	case PtSysTime:
		v, err := r.Uint64()
		return SysTime(v), err
	case PtCLSID:
		return pullGUID(r)
	case PtBinary:
		v, err := r.Binary()
		return Binary(v), err
	case PtMVShort:
		v, err := pullArray(r, 2, (*wire.Puller).Int16)
		return MVShort(v), err
	case PtMVLong:
		v, err := pullArray(r, 4, (*wire.Puller).Int32)
		return MVLong(v), err
	case PtMVFloat:
		v, err := pullArray(r, 4, (*wire.Puller).Float32)
		return MVFloat(v), err
	case PtMVDouble:
		v, err := pullArray(r, 8, (*wire.Puller).Float64)
		return MVDouble(v), err
	case PtMVCurrency:
		v, err := pullArray(r, 8, (*wire.Puller).Int64)
		return MVCurrency(v), err
	case PtMVAppTime:
		v, err := pullArray(r, 8, (*wire.Puller).Float64)
		return MVAppTime(v), err
	case PtMVI8:
		v, err := pullArray(r, 8, (*wire.Puller).Int64)
		return MVI8(v), err
	case PtMVString8:
		v, err := pullArray(r, 1, (*wire.Puller).String)
		return MVString8(v), err
	case PtMVUnicode:
		v, err := pullArray(r, 1, (*wire.Puller).String)
		return MVUnicode(v), err
	case PtMVSysTime:
		v, err := pullArray(r, 8, func(r *wire.Puller) (SysTime, error) {
			v, err := r.Uint64()
			return SysTime(v), err
		})
		return MVSysTime(v), err
	case PtMVCLSID:
		v, err := pullArray(r, 16, pullGUID)
		return MVGUID(v), err
	case PtMVBinary:
		v, err := pullArray(r, 4, (*wire.Puller).Binary)
		return MVBinary(v), err
	}
	return nil, ErrUnsupportedType
}

func pullGUID(r *wire.Puller) (GUID, error) {
	var g GUID
	b, err := r.Raw(len(g))
	if err != nil {
		return g, err
	}
	copy(g[:], b)
	return g, nil
}

// pullArray reads a uint32 element count followed by the elements. minSize
// is the smallest encoding of one element; counts that cannot fit in the
// remaining bytes are rejected before allocating.
func pullArray[T any](r *wire.Puller, minSize int, pull func(*wire.Puller) (T, error)) ([]T, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if uint64(n)*uint64(minSize) > uint64(r.Remaining()) {
		return nil, wire.ErrShortBuffer
	}
	out := make([]T, n)
	for i := range out {
		if out[i], err = pull(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Push encodes tp as its tag followed by its payload.
func Push(p *wire.Pusher, tp TaggedPropval) error {
	if tp.Value == nil {
		return ErrNilValue
	}
	if tp.Value.Type() != tp.Tag.Type() {
		return fmt.Errorf("%w: tag %s carries %s", ErrTypeMismatch, tp.Tag, tp.Value.Type())
	}
	p.Uint32(uint32(tp.Tag))
	if err := PushValue(p, tp.Value); err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) && pe.Tag == 0 {
			pe.Tag = tp.Tag
		}
		return err
	}
	return nil
}

// Pull decodes one tagged property value.
func Pull(r *wire.Puller) (TaggedPropval, error) {
	raw, err := r.Uint32()
	if err != nil {
		return TaggedPropval{}, malformed(0, 0, err)
	}
	tag := Tag(raw)
	v, err := pullValue(r, tag, tag.Type())
	if err != nil {
		return TaggedPropval{}, err
	}
	return TaggedPropval{Tag: tag, Value: v}, nil
}

// PushRow encodes a property row (TPROPVAL_ARRAY): a uint16 count followed
// by the values.
func PushRow(p *wire.Pusher, row Row) error {
	if len(row) > 0xFFFF {
		return fmt.Errorf("propval: row of %d values exceeds 65535", len(row))
	}
	p.Uint16(uint16(len(row)))
	for _, tp := range row {
		if err := Push(p, tp); err != nil {
			return err
		}
	}
	return nil
}

// PullRow decodes a property row.
func PullRow(r *wire.Puller) (Row, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, malformed(0, 0, err)
	}
	// Each value is at least a tag and one payload byte.
	if int(n)*5 > r.Remaining() {
		return nil, malformed(0, 0, wire.ErrShortBuffer)
	}
	row := make(Row, n)
	for i := range row {
		if row[i], err = Pull(r); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// PushRowSet encodes a row set (TARRAY_SET): a uint32 count followed by
// the rows.
func PushRowSet(p *wire.Pusher, rows []Row) error {
	p.Uint32(uint32(len(rows)))
	for _, row := range rows {
		if err := PushRow(p, row); err != nil {
			return err
		}
	}
	return nil
}

// PullRowSet decodes a row set, preserving row order.
func PullRowSet(r *wire.Puller) ([]Row, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, malformed(0, 0, err)
	}
	if uint64(n)*2 > uint64(r.Remaining()) {
		return nil, malformed(0, 0, wire.ErrShortBuffer)
	}
	rows := make([]Row, n)
	for i := range rows {
		if rows[i], err = PullRow(r); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// PushTags encodes a proptag array: a uint16 count followed by the tags.
func PushTags(p *wire.Pusher, tags []Tag) error {
	if len(tags) > 0xFFFF {
		return fmt.Errorf("propval: %d tags exceeds 65535", len(tags))
	}
	p.Uint16(uint16(len(tags)))
	for _, t := range tags {
		p.Uint32(uint32(t))
	}
	return nil
}

// PullTags decodes a proptag array.
func PullTags(r *wire.Puller) ([]Tag, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, malformed(0, 0, err)
	}
	if int(n)*4 > r.Remaining() {
		return nil, malformed(0, 0, wire.ErrShortBuffer)
	}
	tags := make([]Tag, n)
	for i := range tags {
		v, _ := r.Uint32()
		tags[i] = Tag(v)
	}
	return tags, nil
}
