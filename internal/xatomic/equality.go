package xatomic

import "math"

// Equal implements XPath's typed (value) equality between two atomic
// values of possibly different but comparable types, per spec testable
// property 2 (integer/decimal symmetric promotion) and the general
// comparison semantics: numeric-vs-numeric promotes and compares by value
// (NaN never equals, even itself, under op:eq); string-family values
// compare by codepoint equality; QName compares by (URI, local); binary
// compares byte-wise within the same subtype only.
func Equal(a, b Value) (bool, error) {
	switch {
	case IsNumeric(a.Tag) && IsNumeric(b.Tag):
		cmp, err := CompareNumeric(a, b)
		if err != nil {
			return false, err
		}
		return cmp == 0, nil
	case (IsStringFamily(a.Tag) || a.Tag == TagUntyped) && (IsStringFamily(b.Tag) || b.Tag == TagUntyped):
		return a.StringValue() == b.StringValue(), nil
	case a.Tag == TagBoolean && b.Tag == TagBoolean:
		return a.boolean == b.boolean, nil
	case a.Tag == TagQName && b.Tag == TagQName:
		return a.qname.Equal(b.qname), nil
	case (a.Tag == TagHexBinary && b.Tag == TagHexBinary) || (a.Tag == TagBase64Binary && b.Tag == TagBase64Binary):
		return BinaryEqual(a, b), nil
	case a.Tag == TagHexBinary || a.Tag == TagBase64Binary || b.Tag == TagHexBinary || b.Tag == TagBase64Binary:
		return false, nil
	case isTemporal(a.Tag) && isTemporal(b.Tag):
		return EqualTemporal(a, b, 0)
	case a.Tag == TagYearMonthDuration && b.Tag == TagYearMonthDuration:
		return a.durMonths == b.durMonths, nil
	case a.Tag == TagDayTimeDuration && b.Tag == TagDayTimeDuration:
		return a.durNanos == b.durNanos, nil
	}
	return false, nil
}

func isTemporal(t Tag) bool { return t == TagDate || t == TagTime || t == TagDateTime }

// DeepEqual implements fn:deep-equal's atomic-level rule: NaN equals NaN
// (unlike op:eq), everything else matches Equal.
func DeepEqual(a, b Value) (bool, error) {
	if IsNumeric(a.Tag) && IsNumeric(b.Tag) {
		if isNaN(a) && isNaN(b) {
			return true, nil
		}
	}
	return Equal(a, b)
}

func isNaN(v Value) bool {
	switch v.Tag {
	case TagFloat:
		return math.IsNaN(float64(v.f32))
	case TagDouble:
		return math.IsNaN(v.f64)
	}
	return false
}

// TotalOrderKey returns a value suitable for a total order over IEEE bit
// patterns (used where XPath specifies bit-pattern ordering rather than
// IEEE equality, e.g. sorting distinct-values output); NaN sorts after all
// other values, matching the common convention.
func TotalOrderKey(v Value) float64 {
	switch v.Tag {
	case TagFloat:
		f := float64(v.f32)
		if math.IsNaN(f) {
			return math.Inf(1)
		}
		return f
	case TagDouble:
		if math.IsNaN(v.f64) {
			return math.Inf(1)
		}
		return v.f64
	}
	return 0
}
