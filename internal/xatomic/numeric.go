package xatomic

import (
	"math"
	"math/big"
	"strconv"

	"github.com/oxhq/morfx/internal/xerrors"
)

// promotionRank orders the numeric lattice integer(0) < decimal(1) <
// float(2) < double(3); binary arithmetic promotes both operands to the
// higher rank before dispatching to a same-type operation.
func promotionRank(t Tag) int {
	switch {
	case IsIntegerFamily(t):
		return 0
	case t == TagDecimal:
		return 1
	case t == TagFloat:
		return 2
	case t == TagDouble:
		return 3
	}
	return -1
}

func promoteTo(v Value, rank int) Value {
	switch rank {
	case 0:
		return v
	case 1:
		if IsIntegerFamily(v.Tag) {
			return NewDecimal(DecimalFromBigInt(v.integer))
		}
		return v
	case 2:
		switch {
		case IsIntegerFamily(v.Tag):
			f, _ := new(big.Float).SetInt(v.integer).Float32()
			return NewFloat(f)
		case v.Tag == TagDecimal:
			return NewFloat(float32(v.decimal.AsFloat64()))
		}
		return v
	case 3:
		switch {
		case IsIntegerFamily(v.Tag):
			f, _ := new(big.Float).SetInt(v.integer).Float64()
			return NewDouble(f)
		case v.Tag == TagDecimal:
			return NewDouble(v.decimal.AsFloat64())
		case v.Tag == TagFloat:
			return NewDouble(float64(v.f32))
		}
		return v
	}
	return v
}

// promoteBinary promotes a and b to their join in the numeric lattice,
// symmetric per spec §4.5.
func promoteBinary(a, b Value) (Value, Value, error) {
	if !IsNumeric(a.Tag) || !IsNumeric(b.Tag) {
		return Value{}, Value{}, xerrors.New(xerrors.XPTY0004, "arithmetic operand is not numeric")
	}
	ra, rb := promotionRank(a.Tag), promotionRank(b.Tag)
	rank := ra
	if rb > rank {
		rank = rb
	}
	return promoteTo(a, rank), promoteTo(b, rank), nil
}

// Add implements binary +, promoting both operands to their numeric join.
func Add(a, b Value) (Value, error) {
	pa, pb, err := promoteBinary(a, b)
	if err != nil {
		return Value{}, err
	}
	switch pa.Tag {
	case TagInteger:
		return NewInteger(new(big.Int).Add(pa.integer, pb.integer)), nil
	case TagDecimal:
		d, err := pa.decimal.Add(pb.decimal)
		return NewDecimal(d), err
	case TagFloat:
		return NewFloat(pa.f32 + pb.f32), nil
	case TagDouble:
		return NewDouble(pa.f64 + pb.f64), nil
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "unsupported operand type for +")
}

func Sub(a, b Value) (Value, error) {
	pa, pb, err := promoteBinary(a, b)
	if err != nil {
		return Value{}, err
	}
	switch pa.Tag {
	case TagInteger:
		return NewInteger(new(big.Int).Sub(pa.integer, pb.integer)), nil
	case TagDecimal:
		d, err := pa.decimal.Sub(pb.decimal)
		return NewDecimal(d), err
	case TagFloat:
		return NewFloat(pa.f32 - pb.f32), nil
	case TagDouble:
		return NewDouble(pa.f64 - pb.f64), nil
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "unsupported operand type for -")
}

func Mul(a, b Value) (Value, error) {
	pa, pb, err := promoteBinary(a, b)
	if err != nil {
		return Value{}, err
	}
	switch pa.Tag {
	case TagInteger:
		return NewInteger(new(big.Int).Mul(pa.integer, pb.integer)), nil
	case TagDecimal:
		d, err := pa.decimal.Mul(pb.decimal)
		return NewDecimal(d), err
	case TagFloat:
		return NewFloat(pa.f32 * pb.f32), nil
	case TagDouble:
		return NewDouble(pa.f64 * pb.f64), nil
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "unsupported operand type for *")
}

func Div(a, b Value) (Value, error) {
	pa, pb, err := promoteBinary(a, b)
	if err != nil {
		return Value{}, err
	}
	switch pa.Tag {
	case TagInteger:
		// "div" on two integers promotes the result to decimal per XPath.
		if pb.integer.Sign() == 0 {
			return Value{}, xerrors.New(xerrors.FOAR0001, "integer division by zero")
		}
		d, err := DecimalFromBigInt(pa.integer).Div(DecimalFromBigInt(pb.integer))
		return NewDecimal(d), err
	case TagDecimal:
		d, err := pa.decimal.Div(pb.decimal)
		return NewDecimal(d), err
	case TagFloat:
		return NewFloat(pa.f32 / pb.f32), nil
	case TagDouble:
		return NewDouble(pa.f64 / pb.f64), nil
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "unsupported operand type for div")
}

// IDiv implements integer division "idiv": truncating toward zero.
func IDiv(a, b Value) (Value, error) {
	pa, pb, err := promoteBinary(a, b)
	if err != nil {
		return Value{}, err
	}
	if pa.Tag != TagInteger {
		// truncate the quotient a/b, not the operands
		if cmp, err := CompareNumeric(pb, NewIntegerInt64(0)); err == nil && cmp == 0 {
			return Value{}, xerrors.New(xerrors.FOAR0001, "integer division by zero")
		}
		q, err := Div(pa, pb)
		if err != nil {
			return Value{}, err
		}
		pa, pb = q, NewIntegerInt64(1)
	}
	toInt := func(v Value) (*big.Int, error) {
		switch v.Tag {
		case TagInteger:
			return v.integer, nil
		case TagDecimal:
			return v.decimal.AsBigInt(), nil
		case TagFloat:
			if math.IsNaN(float64(v.f32)) || math.IsInf(float64(v.f32), 0) {
				return nil, xerrors.New(xerrors.FOAR0002, "idiv operand not finite")
			}
			bi, _ := big.NewFloat(float64(v.f32)).Int(nil)
			return bi, nil
		case TagDouble:
			if math.IsNaN(v.f64) || math.IsInf(v.f64, 0) {
				return nil, xerrors.New(xerrors.FOAR0002, "idiv operand not finite")
			}
			bi, _ := big.NewFloat(v.f64).Int(nil)
			return bi, nil
		}
		return nil, xerrors.New(xerrors.XPTY0004, "unsupported operand type for idiv")
	}
	ia, err := toInt(pa)
	if err != nil {
		return Value{}, err
	}
	ib, err := toInt(pb)
	if err != nil {
		return Value{}, err
	}
	if ib.Sign() == 0 {
		return Value{}, xerrors.New(xerrors.FOAR0001, "integer division by zero")
	}
	return NewInteger(new(big.Int).Quo(ia, ib)), nil
}

// Mod implements "mod", matching the sign of the dividend (Go's Rem rule),
// which is the XPath-specified behaviour.
func Mod(a, b Value) (Value, error) {
	pa, pb, err := promoteBinary(a, b)
	if err != nil {
		return Value{}, err
	}
	switch pa.Tag {
	case TagInteger:
		if pb.integer.Sign() == 0 {
			return Value{}, xerrors.New(xerrors.FOAR0001, "integer modulo by zero")
		}
		return NewInteger(new(big.Int).Rem(pa.integer, pb.integer)), nil
	case TagDecimal:
		if pb.decimal.Sign() == 0 {
			return Value{}, xerrors.New(xerrors.FOAR0001, "decimal modulo by zero")
		}
		q := pa.decimal.AsFloat64() / pb.decimal.AsFloat64()
		trunc := math.Trunc(q)
		prod, err := DecimalFromBigInt(big.NewInt(int64(trunc))).Mul(pb.decimal)
		if err != nil {
			return Value{}, err
		}
		d, err := pa.decimal.Sub(prod)
		return NewDecimal(d), err
	case TagFloat:
		return NewFloat(float32(math.Mod(float64(pa.f32), float64(pb.f32)))), nil
	case TagDouble:
		return NewDouble(math.Mod(pa.f64, pb.f64)), nil
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "unsupported operand type for mod")
}

func UnaryMinus(v Value) (Value, error) {
	switch v.Tag {
	case TagInteger:
		return NewInteger(new(big.Int).Neg(v.integer)), nil
	case TagDecimal:
		return NewDecimal(v.decimal.Neg()), nil
	case TagFloat:
		return NewFloat(-v.f32), nil
	case TagDouble:
		return NewDouble(-v.f64), nil
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "unary minus requires a numeric operand")
}

func UnaryPlus(v Value) (Value, error) {
	if !IsNumeric(v.Tag) {
		return Value{}, xerrors.New(xerrors.XPTY0004, "unary plus requires a numeric operand")
	}
	return v, nil
}

// CompareNumeric returns -1/0/1 (or 2 for "unordered", i.e. a NaN operand)
// after promoting both operands to their numeric join.
func CompareNumeric(a, b Value) (int, error) {
	pa, pb, err := promoteBinary(a, b)
	if err != nil {
		return 0, err
	}
	switch pa.Tag {
	case TagInteger:
		return pa.integer.Cmp(pb.integer), nil
	case TagDecimal:
		return pa.decimal.Cmp(pb.decimal), nil
	case TagFloat:
		if math.IsNaN(float64(pa.f32)) || math.IsNaN(float64(pb.f32)) {
			return 2, nil
		}
		return cmpFloat64(float64(pa.f32), float64(pb.f32)), nil
	case TagDouble:
		if math.IsNaN(pa.f64) || math.IsNaN(pb.f64) {
			return 2, nil
		}
		return cmpFloat64(pa.f64, pb.f64), nil
	}
	return 0, xerrors.New(xerrors.XPTY0004, "values not comparable")
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// RoundHalfToEven rounds v to the given decimal precision (negative
// precision rounds to the left of the point, e.g. -2 rounds to hundreds),
// per the xs:decimal round-half-to-even rule used by fn:round-half-to-even.
// Negative-precision rounding (open question in spec §9) divides the
// unscaled value by 10^(Scale-precision), corrects the quotient half-to-even,
// and returns it at Scale = precision; the resulting negative Scale stands
// for trailing zeros, which Decimal.String and AsBigInt expand.
func RoundHalfToEven(d Decimal, precision int32) Decimal {
	shift := precision - d.Scale
	if shift >= 0 {
		return Decimal{Unscaled: new(big.Int).Mul(d.Unscaled, pow10(shift)), Scale: precision}
	}
	divisor := pow10(-shift)
	q, r := new(big.Int).QuoRem(d.Unscaled, divisor, new(big.Int))
	twice := new(big.Int).Mul(new(big.Int).Abs(r), big.NewInt(2))
	cmp := twice.Cmp(divisor)
	if cmp > 0 || (cmp == 0 && q.Bit(0) == 1) {
		if d.Unscaled.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return Decimal{Unscaled: q, Scale: precision}
}

func formatFloat32(f float32) string {
	if math.IsNaN(float64(f)) {
		return "NaN"
	}
	if math.IsInf(float64(f), 1) {
		return "INF"
	}
	if math.IsInf(float64(f), -1) {
		return "-INF"
	}
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func formatFloat64(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "INF"
	}
	if math.IsInf(f, -1) {
		return "-INF"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// integerRange bounds derived integer subtypes for range-checking on cast.
var integerRange = map[Tag][2]*big.Int{
	TagNonPositiveInteger: {nil, big.NewInt(0)},
	TagNegativeInteger:    {nil, big.NewInt(-1)},
	TagLong:               {big.NewInt(math.MinInt64), big.NewInt(math.MaxInt64)},
	TagInt:                {big.NewInt(math.MinInt32), big.NewInt(math.MaxInt32)},
	TagShort:              {big.NewInt(math.MinInt16), big.NewInt(math.MaxInt16)},
	TagByte:               {big.NewInt(math.MinInt8), big.NewInt(math.MaxInt8)},
	TagNonNegativeInteger: {big.NewInt(0), nil},
	TagUnsignedLong:       {big.NewInt(0), new(big.Int).SetUint64(math.MaxUint64)},
	TagUnsignedInt:        {big.NewInt(0), big.NewInt(math.MaxUint32)},
	TagUnsignedShort:      {big.NewInt(0), big.NewInt(math.MaxUint16)},
	TagUnsignedByte:       {big.NewInt(0), big.NewInt(math.MaxUint8)},
	TagPositiveInteger:    {big.NewInt(1), nil},
}

// CheckIntegerRange validates i against the derived type's range, per
// spec §4.5 ("range-check on cast").
func CheckIntegerRange(tag Tag, i *big.Int) error {
	bound, ok := integerRange[tag]
	if !ok {
		return nil
	}
	if bound[0] != nil && i.Cmp(bound[0]) < 0 {
		return xerrors.Newf(xerrors.FOCA0002, "%s out of range: %s", tag, i.String())
	}
	if bound[1] != nil && i.Cmp(bound[1]) > 0 {
		return xerrors.Newf(xerrors.FOCA0002, "%s out of range: %s", tag, i.String())
	}
	return nil
}
