package xatomic

import (
	"math/big"
	"time"

	"github.com/oxhq/morfx/internal/xname"
)

// Value is a single atomic value: a Tag plus whichever payload field the tag
// implies. Only one payload field is meaningful for a given Tag; this is the
// "tagged variant" the design notes call for, kept as a flat struct (instead
// of an interface-per-type) so that operations can switch on Tag pairs
// directly rather than dispatch through virtual calls.
type Value struct {
	Tag Tag

	str string // string family, untyped

	boolean bool

	integer *big.Int // integer family
	decimal Decimal  // xs:decimal

	f32 float32
	f64 float64

	t     time.Time
	hasTZ bool
	tzOff time.Duration // offset east of UTC when hasTZ

	durMonths int64 // yearMonthDuration, signed
	durNanos  int64 // dayTimeDuration, signed

	binary []byte // hex/base64 binary

	qname xname.Name
}

// NewString builds a value in the string family. Callers needing validation
// (e.g. casting to xs:NCName) should go through Cast instead of this raw
// constructor, which is also used internally to build untyped/string
// results that are already known-valid (e.g. a node's string-value).
func NewString(tag Tag, s string) Value { return Value{Tag: tag, str: s} }

func NewUntyped(s string) Value { return Value{Tag: TagUntyped, str: s} }

func NewBoolean(b bool) Value { return Value{Tag: TagBoolean, boolean: b} }

func NewInteger(i *big.Int) Value { return Value{Tag: TagInteger, integer: i} }

func NewIntegerInt64(i int64) Value { return Value{Tag: TagInteger, integer: big.NewInt(i)} }

func NewDecimal(d Decimal) Value { return Value{Tag: TagDecimal, decimal: d} }

func NewFloat(f float32) Value { return Value{Tag: TagFloat, f32: f} }

func NewDouble(f float64) Value { return Value{Tag: TagDouble, f64: f} }

func NewDateTime(t time.Time, hasTZ bool) Value {
	return Value{Tag: TagDateTime, t: t, hasTZ: hasTZ, tzOff: zoneOffset(t)}
}

func NewDate(t time.Time, hasTZ bool) Value {
	return Value{Tag: TagDate, t: t, hasTZ: hasTZ, tzOff: zoneOffset(t)}
}

func NewTime(t time.Time, hasTZ bool) Value {
	return Value{Tag: TagTime, t: t, hasTZ: hasTZ, tzOff: zoneOffset(t)}
}

func zoneOffset(t time.Time) time.Duration {
	_, off := t.Zone()
	return time.Duration(off) * time.Second
}

func NewYearMonthDuration(months int64) Value {
	return Value{Tag: TagYearMonthDuration, durMonths: months}
}

func NewDayTimeDuration(nanos int64) Value {
	return Value{Tag: TagDayTimeDuration, durNanos: nanos}
}

func NewHexBinary(b []byte) Value { return Value{Tag: TagHexBinary, binary: b} }

func NewBase64Binary(b []byte) Value { return Value{Tag: TagBase64Binary, binary: b} }

func NewQName(n xname.Name) Value { return Value{Tag: TagQName, qname: n} }

// String returns the string-family/untyped payload. Callers must know the
// tag is appropriate (string family, untyped, or QName-local via StringValue).
func (v Value) String() string { return v.str }

func (v Value) Bool() bool { return v.boolean }

func (v Value) Integer() *big.Int { return v.integer }

func (v Value) DecimalValue() Decimal { return v.decimal }

func (v Value) Float32() float32 { return v.f32 }

func (v Value) Float64() float64 { return v.f64 }

func (v Value) Time() time.Time { return v.t }

func (v Value) HasTimezone() bool { return v.hasTZ }

func (v Value) YearMonthMonths() int64 { return v.durMonths }

func (v Value) DayTimeNanos() int64 { return v.durNanos }

func (v Value) Binary() []byte { return v.binary }

func (v Value) QName() xname.Name { return v.qname }

// StringValue returns the canonical XPath textual representation of v,
// independent of Tag; used both for fn:string() and for atomization's
// string-value fallback.
func (v Value) StringValue() string {
	switch v.Tag {
	case TagUntyped:
		return v.str
	case TagBoolean:
		if v.boolean {
			return "true"
		}
		return "false"
	case TagQName:
		return v.qname.String()
	case TagHexBinary:
		return hexEncode(v.binary)
	case TagBase64Binary:
		return base64Encode(v.binary)
	case TagFloat:
		return formatFloat32(v.f32)
	case TagDouble:
		return formatFloat64(v.f64)
	case TagDecimal:
		return v.decimal.String()
	case TagDate, TagTime, TagDateTime:
		return formatTemporal(v)
	case TagYearMonthDuration:
		return formatYearMonthDuration(v.durMonths)
	case TagDayTimeDuration:
		return formatDayTimeDuration(v.durNanos)
	default:
		if IsIntegerFamily(v.Tag) {
			return v.integer.String()
		}
		if IsStringFamily(v.Tag) {
			return v.str
		}
		return v.str
	}
}
