// Package propval implements typed MAPI property values: the tag that names
// a property and fixes its type, the value model for every supported type,
// and the ext-buffer wire codec used by the EXMDB protocol.
package propval

import "fmt"

// Type is the 16-bit property type discriminant carried in the low half of
// a Tag.
type Type uint16

// Property types. Multi-valued types are the single-valued base or'ed with
// MVFlag.
const (
	PtUnspecified  Type = 0x0000
	PtNull         Type = 0x0001
	PtShort        Type = 0x0002
	PtLong         Type = 0x0003
	PtFloat        Type = 0x0004
	PtDouble       Type = 0x0005
	PtCurrency     Type = 0x0006
	PtAppTime      Type = 0x0007
	PtError        Type = 0x000A
	PtBoolean      Type = 0x000B
	PtObject       Type = 0x000D
	PtI8           Type = 0x0014
	PtString8      Type = 0x001E
	PtUnicode      Type = 0x001F
	PtSysTime      Type = 0x0040
	PtCLSID        Type = 0x0048
	PtSvrEID       Type = 0x00FB
	PtSRestriction Type = 0x00FD
	PtActions      Type = 0x00FE
	PtBinary       Type = 0x0102

	MVFlag Type = 0x1000

	PtMVShort    = MVFlag | PtShort
	PtMVLong     = MVFlag | PtLong
	PtMVFloat    = MVFlag | PtFloat
	PtMVDouble   = MVFlag | PtDouble
	PtMVCurrency = MVFlag | PtCurrency
	PtMVAppTime  = MVFlag | PtAppTime
	PtMVI8       = MVFlag | PtI8
	PtMVString8  = MVFlag | PtString8
	PtMVUnicode  = MVFlag | PtUnicode
	PtMVSysTime  = MVFlag | PtSysTime
	PtMVCLSID    = MVFlag | PtCLSID
	PtMVBinary   = MVFlag | PtBinary
)

var typeNames = map[Type]string{
	PtUnspecified:  "PT_UNSPECIFIED",
	PtNull:         "PT_NULL",
	PtShort:        "PT_SHORT",
	PtLong:         "PT_LONG",
	PtFloat:        "PT_FLOAT",
	PtDouble:       "PT_DOUBLE",
	PtCurrency:     "PT_CURRENCY",
	PtAppTime:      "PT_APPTIME",
	PtError:        "PT_ERROR",
	PtBoolean:      "PT_BOOLEAN",
	PtObject:       "PT_OBJECT",
	PtI8:           "PT_I8",
	PtString8:      "PT_STRING8",
	PtUnicode:      "PT_UNICODE",
	PtSysTime:      "PT_SYSTIME",
	PtCLSID:        "PT_CLSID",
	PtSvrEID:       "PT_SVREID",
	PtSRestriction: "PT_SRESTRICTION",
	PtActions:      "PT_ACTIONS",
	PtBinary:       "PT_BINARY",
	PtMVShort:      "PT_MV_SHORT",
	PtMVLong:       "PT_MV_LONG",
	PtMVFloat:      "PT_MV_FLOAT",
	PtMVDouble:     "PT_MV_DOUBLE",
	PtMVCurrency:   "PT_MV_CURRENCY",
	PtMVAppTime:    "PT_MV_APPTIME",
	PtMVI8:         "PT_MV_I8",
	PtMVString8:    "PT_MV_STRING8",
	PtMVUnicode:    "PT_MV_UNICODE",
	PtMVSysTime:    "PT_MV_SYSTIME",
	PtMVCLSID:      "PT_MV_CLSID",
	PtMVBinary:     "PT_MV_BINARY",
}

// String returns the MAPI name of the type, e.g. "PT_UNICODE".
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PT_0x%04x", uint16(t))
}

// IsMultiValued reports whether t carries the multi-value flag.
func (t Type) IsMultiValued() bool { return t&MVFlag != 0 }

// Supported reports whether values of type t can be encoded and decoded.
func (t Type) Supported() bool {
	switch t {
	case PtShort, PtLong, PtFloat, PtDouble, PtCurrency, PtAppTime, PtError,
		PtBoolean, PtObject, PtI8, PtString8, PtUnicode, PtSysTime, PtCLSID,
		PtBinary,
		PtMVShort, PtMVLong, PtMVFloat, PtMVDouble, PtMVCurrency, PtMVAppTime,
		PtMVI8, PtMVString8, PtMVUnicode, PtMVSysTime, PtMVCLSID, PtMVBinary:
		return true
	}
	return false
}

// Tag identifies a property: the property id in the high 16 bits and its
// Type in the low 16 bits.
type Tag uint32

// MakeTag combines a property id and a type.
func MakeTag(id uint16, t Type) Tag {
	return Tag(uint32(id)<<16 | uint32(t))
}

// ID returns the property id.
func (t Tag) ID() uint16 { return uint16(t >> 16) }

// Type returns the property type.
func (t Tag) Type() Type { return Type(t & 0xFFFF) }

// WithType returns the tag with the same id and a different type.
func (t Tag) WithType(typ Type) Tag { return MakeTag(t.ID(), typ) }

// String returns the well-known name of the tag if there is one, otherwise
// its hexadecimal form.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", uint32(t))
}
