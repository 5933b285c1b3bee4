package propval

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Value is the payload of a property. The set of implementations is closed:
// every supported Type has exactly one Go type, and a Value always reports
// the Type it encodes as.
type Value interface {
	Type() Type
	isValue()
}

type (
	Short     int16
	Long      int32
	Float     float32
	Double    float64
	Currency  int64 // fixed point, scaled by 10000
	AppTime   float64
	ErrorCode uint32
	Bool      bool
	Object    []byte
	I8        int64
	String8   string
	Unicode   string
	SysTime   uint64 // FILETIME: 100ns intervals since 1601-01-01 UTC
	GUID      [16]byte
	Binary    []byte

	MVShort    []int16
	MVLong     []int32
	MVFloat    []float32
	MVDouble   []float64
	MVCurrency []int64
	MVAppTime  []float64
	MVI8       []int64
	MVString8  []string
	MVUnicode  []string
	MVSysTime  []SysTime
	MVGUID     []GUID
	MVBinary   [][]byte
)

func (Short) Type() Type     { return PtShort }
func (Long) Type() Type      { return PtLong }
func (Float) Type() Type     { return PtFloat }
func (Double) Type() Type    { return PtDouble }
func (Currency) Type() Type  { return PtCurrency }
func (AppTime) Type() Type   { return PtAppTime }
func (ErrorCode) Type() Type { return PtError }
func (Bool) Type() Type      { return PtBoolean }
func (Object) Type() Type    { return PtObject }
func (I8) Type() Type        { return PtI8 }
func (String8) Type() Type   { return PtString8 }
func (Unicode) Type() Type   { return PtUnicode }
func (SysTime) Type() Type   { return PtSysTime }
func (GUID) Type() Type      { return PtCLSID }
func (Binary) Type() Type    { return PtBinary }

func (MVShort) Type() Type    { return PtMVShort }
func (MVLong) Type() Type     { return PtMVLong }
func (MVFloat) Type() Type    { return PtMVFloat }
func (MVDouble) Type() Type   { return PtMVDouble }
func (MVCurrency) Type() Type { return PtMVCurrency }
func (MVAppTime) Type() Type  { return PtMVAppTime }
func (MVI8) Type() Type       { return PtMVI8 }
func (MVString8) Type() Type  { return PtMVString8 }
func (MVUnicode) Type() Type  { return PtMVUnicode }
func (MVSysTime) Type() Type  { return PtMVSysTime }
func (MVGUID) Type() Type     { return PtMVCLSID }
func (MVBinary) Type() Type   { return PtMVBinary }

func (Short) isValue()     {}
func (Long) isValue()      {}
func (Float) isValue()     {}
func (Double) isValue()    {}
func (Currency) isValue()  {}
func (AppTime) isValue()   {}
func (ErrorCode) isValue() {}
func (Bool) isValue()      {}
func (Object) isValue()    {}
func (I8) isValue()        {}
func (String8) isValue()   {}
func (Unicode) isValue()   {}
func (SysTime) isValue()   {}
func (GUID) isValue()      {}
func (Binary) isValue()    {}

func (MVShort) isValue()    {}
func (MVLong) isValue()     {}
func (MVFloat) isValue()    {}
func (MVDouble) isValue()   {}
func (MVCurrency) isValue() {}
func (MVAppTime) isValue()  {}
func (MVI8) isValue()       {}
func (MVString8) isValue()  {}
func (MVUnicode) isValue()  {}
func (MVSysTime) isValue()  {}
func (MVGUID) isValue()     {}
func (MVBinary) isValue()   {}

// Seconds between the FILETIME epoch (1601) and the Unix epoch.
const filetimeEpochDelta = 11644473600

// FromTime converts t to FILETIME. Times before 1601 clamp to zero.
func FromTime(t time.Time) SysTime {
	secs := t.Unix() + filetimeEpochDelta
	if secs < 0 {
		return 0
	}
	return SysTime(uint64(secs)*10_000_000 + uint64(t.Nanosecond()/100))
}

// Time converts the FILETIME value to a UTC time.
func (s SysTime) Time() time.Time {
	secs := int64(uint64(s)/10_000_000) - filetimeEpochDelta
	nsec := int64(uint64(s)%10_000_000) * 100
	return time.Unix(secs, nsec).UTC()
}

// String formats the GUID in canonical 8-4-4-4-12 form. The first three
// groups are stored little-endian on the wire.
func (g GUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%x-%x",
		binary.LittleEndian.Uint32(g[0:4]),
		binary.LittleEndian.Uint16(g[4:6]),
		binary.LittleEndian.Uint16(g[6:8]),
		g[8:10], g[10:16])
}
