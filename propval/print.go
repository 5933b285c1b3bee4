package propval

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PrintValue renders the payload for display. Strings are quoted,
// timestamps are RFC 3339 in UTC, binaries are lowercase hex and
// multi-valued payloads are bracketed lists.
func (tp TaggedPropval) PrintValue() string {
	return formatValue(tp.Value)
}

// String renders the tag, its type and the printed value, e.g.
// `0x3001001f (PT_UNICODE) = "Inbox"`.
func (tp TaggedPropval) String() string {
	return fmt.Sprintf("0x%08x (%s) = %s", uint32(tp.Tag), tp.Tag.Type(), tp.PrintValue())
}

func formatValue(v Value) string {
	switch v := v.(type) {
	case Short:
		return strconv.FormatInt(int64(v), 10)
	case Long:
		return strconv.FormatInt(int64(v), 10)
	case I8:
		return strconv.FormatInt(int64(v), 10)
	case Float:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case Double:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case AppTime:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case Currency:
		return formatCurrency(int64(v))
	case ErrorCode:
		return fmt.Sprintf("0x%08x", uint32(v))
	case Bool:
		return strconv.FormatBool(bool(v))
	case String8:
		return strconv.Quote(string(v))
	case Unicode:
		return strconv.Quote(string(v))
	case SysTime:
		return v.Time().Format(time.RFC3339Nano)
	case GUID:
		return v.String()
	case Binary:
		return hex.EncodeToString(v)
	case Object:
		return hex.EncodeToString(v)
	case MVShort:
		return formatList(v, func(e int16) string { return strconv.FormatInt(int64(e), 10) })
	case MVLong:
		return formatList(v, func(e int32) string { return strconv.FormatInt(int64(e), 10) })
	case MVI8:
		return formatList(v, func(e int64) string { return strconv.FormatInt(e, 10) })
	case MVFloat:
		return formatList(v, func(e float32) string { return strconv.FormatFloat(float64(e), 'g', -1, 32) })
	case MVDouble:
		return formatList(v, func(e float64) string { return strconv.FormatFloat(e, 'g', -1, 64) })
	case MVAppTime:
		return formatList(v, func(e float64) string { return strconv.FormatFloat(e, 'g', -1, 64) })
	case MVCurrency:
		return formatList(v, formatCurrency)
	case MVString8:
		return formatList(v, strconv.Quote)
	case MVUnicode:
		return formatList(v, strconv.Quote)
	case MVSysTime:
		return formatList(v, func(e SysTime) string { return e.Time().Format(time.RFC3339Nano) })
	case MVGUID:
		return formatList(v, GUID.String)
	case MVBinary:
		return formatList(v, hex.EncodeToString)
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("%v", v)
}

func formatList[T any](items []T, format func(T) string) string {
	parts := make([]string, len(items))
	for i, e := range items {
		parts[i] = format(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatCurrency(v int64) string {
	sign := ""
	u := uint64(v)
	if v < 0 {
		sign = "-"
		u = uint64(-v)
	}
	return fmt.Sprintf("%s%d.%04d", sign, u/10000, u%10000)
}
