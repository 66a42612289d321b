package xatomic

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xname"
)

// Cast converts v to the target Tag, per spec §4.5. Unsupported source/
// target combinations raise XPTY0004; lexically invalid string sources
// raise FORG0001; out-of-range numeric casts raise FOCA0002.
func Cast(v Value, target Tag) (Value, error) {
	if IsStringFamily(target) {
		return CastToStringFamily(target, v.StringValue())
	}
	switch target {
	case TagUntyped:
		return NewUntyped(v.StringValue()), nil
	case TagBoolean:
		return castToBoolean(v)
	case TagDecimal:
		return castToDecimal(v)
	case TagFloat:
		d, err := castToDouble(v)
		if err != nil {
			return Value{}, err
		}
		return NewFloat(float32(d.f64)), nil
	case TagDouble:
		return castToDouble(v)
	case TagQName:
		return castToQName(v)
	case TagHexBinary:
		b, err := ParseHexBinary(v.StringValue())
		if err != nil {
			return Value{}, err
		}
		return NewHexBinary(b), nil
	case TagBase64Binary:
		b, err := ParseBase64Binary(v.StringValue())
		if err != nil {
			return Value{}, err
		}
		return NewBase64Binary(b), nil
	}
	if IsIntegerFamily(target) {
		return castToIntegerFamily(v, target)
	}
	return Value{}, xerrors.Newf(xerrors.XPTY0004, "unsupported cast target %s", target)
}

func castToBoolean(v Value) (Value, error) {
	switch {
	case v.Tag == TagBoolean:
		return v, nil
	case IsNumeric(v.Tag):
		cmp, err := CompareNumeric(v, NewIntegerInt64(0))
		if err != nil {
			return Value{}, err
		}
		return NewBoolean(cmp != 0), nil
	case IsStringFamily(v.Tag) || v.Tag == TagUntyped:
		s := strings.TrimSpace(v.StringValue())
		switch s {
		case "true", "1":
			return NewBoolean(true), nil
		case "false", "0":
			return NewBoolean(false), nil
		}
		return Value{}, xerrors.Newf(xerrors.FORG0001, "%q is not a valid xs:boolean", s)
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "cannot cast to xs:boolean")
}

func castToDecimal(v Value) (Value, error) {
	switch {
	case v.Tag == TagDecimal:
		return v, nil
	case IsIntegerFamily(v.Tag):
		return NewDecimal(DecimalFromBigInt(v.integer)), nil
	case v.Tag == TagFloat || v.Tag == TagDouble:
		f := v.f64
		if v.Tag == TagFloat {
			f = float64(v.f32)
		}
		if f != f || f > 1e300 || f < -1e300 {
			return Value{}, xerrors.New(xerrors.FOCA0003, "cannot cast non-finite float/double to xs:decimal")
		}
		return NewDecimal(parseDecimalString(strconv.FormatFloat(f, 'f', -1, 64))), nil
	case v.Tag == TagBoolean:
		if v.boolean {
			return NewDecimal(DecimalFromInt64(1)), nil
		}
		return NewDecimal(DecimalFromInt64(0)), nil
	case IsStringFamily(v.Tag) || v.Tag == TagUntyped:
		s := strings.TrimSpace(v.StringValue())
		body := s
		if body != "" && (body[0] == '+' || body[0] == '-') {
			body = body[1:]
		}
		intPart, fracPart, _ := strings.Cut(body, ".")
		if intPart+fracPart == "" || strings.Trim(intPart+fracPart, "0123456789") != "" {
			return Value{}, xerrors.Newf(xerrors.FORG0001, "%q is not a valid xs:decimal", s)
		}
		return NewDecimal(parseDecimalString(s)), nil
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "cannot cast to xs:decimal")
}

func parseDecimalString(s string) Decimal {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "+"), "-")
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	digits := intPart + fracPart
	scale := int32(0)
	if hasFrac {
		scale = int32(len(fracPart))
	}
	bi := new(big.Int)
	bi.SetString(digits, 10)
	if neg {
		bi.Neg(bi)
	}
	return Decimal{Unscaled: bi, Scale: scale}
}

func castToDouble(v Value) (Value, error) {
	switch {
	case v.Tag == TagDouble:
		return v, nil
	case v.Tag == TagFloat:
		return NewDouble(float64(v.f32)), nil
	case v.Tag == TagDecimal:
		return NewDouble(v.decimal.AsFloat64()), nil
	case IsIntegerFamily(v.Tag):
		f := new(big.Float).SetInt(v.integer)
		out, _ := f.Float64()
		return NewDouble(out), nil
	case v.Tag == TagBoolean:
		if v.boolean {
			return NewDouble(1), nil
		}
		return NewDouble(0), nil
	case IsStringFamily(v.Tag) || v.Tag == TagUntyped:
		s := strings.TrimSpace(v.StringValue())
		switch s {
		case "NaN":
			return NewDouble(nanDouble()), nil
		case "INF":
			return NewDouble(infDouble(1)), nil
		case "-INF":
			return NewDouble(infDouble(-1)), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, xerrors.Newf(xerrors.FORG0001, "%q is not a valid xs:double", s)
		}
		return NewDouble(f), nil
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "cannot cast to xs:double")
}

func nanDouble() float64    { var z float64; return z / z }
func infDouble(sign int) float64 {
	return math.Inf(sign)
}

func castToIntegerFamily(v Value, target Tag) (Value, error) {
	var bi *big.Int
	switch {
	case IsIntegerFamily(v.Tag):
		bi = new(big.Int).Set(v.integer)
	case v.Tag == TagDecimal:
		bi = v.decimal.AsBigInt()
	case v.Tag == TagFloat:
		if v.f32 != v.f32 {
			return Value{}, xerrors.New(xerrors.FOCA0002, "cannot cast NaN to an integer type")
		}
		r, _ := big.NewFloat(float64(v.f32)).Int(nil)
		bi = r
	case v.Tag == TagDouble:
		if v.f64 != v.f64 {
			return Value{}, xerrors.New(xerrors.FOCA0002, "cannot cast NaN to an integer type")
		}
		r, _ := big.NewFloat(v.f64).Int(nil)
		bi = r
	case v.Tag == TagBoolean:
		if v.boolean {
			bi = big.NewInt(1)
		} else {
			bi = big.NewInt(0)
		}
	case IsStringFamily(v.Tag) || v.Tag == TagUntyped:
		s := strings.TrimSpace(v.StringValue())
		bi = new(big.Int)
		if _, ok := bi.SetString(s, 10); !ok {
			return Value{}, xerrors.Newf(xerrors.FORG0001, "%q is not a valid xs:integer", s)
		}
	default:
		return Value{}, xerrors.New(xerrors.XPTY0004, "cannot cast to an integer type")
	}
	if bi == nil {
		return Value{}, xerrors.New(xerrors.FOCA0002, "cannot cast an infinite value to an integer type")
	}
	if err := CheckIntegerRange(target, bi); err != nil {
		return Value{}, err
	}
	return Value{Tag: target, integer: bi}, nil
}

func castToQName(v Value) (Value, error) {
	if v.Tag == TagQName {
		return v, nil
	}
	if !IsStringFamily(v.Tag) && v.Tag != TagUntyped {
		return Value{}, xerrors.New(xerrors.XPTY0004, "cannot cast to xs:QName from a non-string value")
	}
	// Lexical QName parsing (prefix:local or local) is performed by the
	// caller via fn:QName/the parser, which has access to the in-scope
	// namespace bindings this package does not carry; a bare lexical
	// string with a prefix cannot be safely resolved here. Unprefixed
	// names are the only case this low-level cast can complete.
	s := strings.TrimSpace(v.StringValue())
	if strings.Contains(s, ":") {
		return Value{}, xerrors.New(xerrors.FONS0004, "casting a prefixed QName lexical form requires a bound namespace context")
	}
	if err := ValidateStringFamily(TagNCName, s); err != nil {
		return Value{}, xerrors.Newf(xerrors.FORG0001, "%q is not a valid QName local part", s)
	}
	return NewQName(xname.Name{Local: s}), nil
}

// Castable reports whether Cast(v, target) would succeed, without
// allocating/returning the cast result.
func Castable(v Value, target Tag) bool {
	_, err := Cast(v, target)
	return err == nil
}

// ParseDateTime parses an xs:dateTime lexical form, returning the time and
// whether a timezone offset was present.
func ParseDateTime(s string) (time.Time, bool, error) {
	return parseTemporal(s, "2006-01-02T15:04:05.999999999")
}

func ParseDate(s string) (time.Time, bool, error) {
	return parseTemporal(s, "2006-01-02")
}

func ParseTime(s string) (time.Time, bool, error) {
	return parseTemporal(s, "15:04:05.999999999")
}

func parseTemporal(s, layout string) (time.Time, bool, error) {
	hasTZ := strings.HasSuffix(s, "Z") || hasTZOffsetSuffix(s)
	t, err := time.Parse(layout+"Z07:00", s)
	if err == nil {
		return t, hasTZ, nil
	}
	t, err = time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false, xerrors.Newf(xerrors.FORG0001, "invalid temporal lexical form: %q", s)
	}
	return t, false, nil
}

func hasTZOffsetSuffix(s string) bool {
	if len(s) < 6 {
		return false
	}
	tail := s[len(s)-6:]
	return (tail[0] == '+' || tail[0] == '-') && tail[3] == ':'
}
