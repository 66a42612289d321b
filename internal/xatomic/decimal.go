package xatomic

import (
	"math/big"
	"strings"

	"github.com/oxhq/morfx/internal/xerrors"
)

// Decimal is a fixed-precision decimal: Unscaled * 10^-Scale, matching the
// XML Schema xs:decimal lexical space (arbitrary but finite precision, no
// NaN/Inf). Arithmetic overflow is explicit: DecimalMaxDigits bounds the
// number of significant digits this implementation will carry before
// raising FOAR0002, keeping operations total and cheap to reason about.
type Decimal struct {
	Unscaled *big.Int
	Scale    int32 // number of digits after the decimal point
}

// DecimalMaxDigits bounds the unscaled magnitude's decimal digit count.
const DecimalMaxDigits = 4096

func DecimalFromInt64(i int64) Decimal {
	return Decimal{Unscaled: big.NewInt(i), Scale: 0}
}

func DecimalFromBigInt(i *big.Int) Decimal {
	return Decimal{Unscaled: new(big.Int).Set(i), Scale: 0}
}

// rescale returns (a', b') with a common scale, the larger of a.Scale/b.Scale.
func rescale(a, b Decimal) (Decimal, Decimal) {
	if a.Scale == b.Scale {
		return a, b
	}
	if a.Scale < b.Scale {
		diff := b.Scale - a.Scale
		mul := pow10(diff)
		return Decimal{Unscaled: new(big.Int).Mul(a.Unscaled, mul), Scale: b.Scale}, b
	}
	diff := a.Scale - b.Scale
	mul := pow10(diff)
	return a, Decimal{Unscaled: new(big.Int).Mul(b.Unscaled, mul), Scale: a.Scale}
}

func pow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func (d Decimal) checkOverflow() error {
	digits := len(strings.TrimLeft(new(big.Int).Abs(d.Unscaled).String(), "0"))
	if digits > DecimalMaxDigits {
		return xerrors.Newf(xerrors.FOAR0002, "decimal value exceeds %d significant digits", DecimalMaxDigits)
	}
	return nil
}

func (d Decimal) Add(o Decimal) (Decimal, error) {
	a, b := rescale(d, o)
	out := Decimal{Unscaled: new(big.Int).Add(a.Unscaled, b.Unscaled), Scale: a.Scale}
	return out, out.checkOverflow()
}

func (d Decimal) Sub(o Decimal) (Decimal, error) {
	a, b := rescale(d, o)
	out := Decimal{Unscaled: new(big.Int).Sub(a.Unscaled, b.Unscaled), Scale: a.Scale}
	return out, out.checkOverflow()
}

func (d Decimal) Mul(o Decimal) (Decimal, error) {
	out := Decimal{Unscaled: new(big.Int).Mul(d.Unscaled, o.Unscaled), Scale: d.Scale + o.Scale}
	return out, out.checkOverflow()
}

// Div implements xs:decimal division to (by convention here) 18 fractional
// digits beyond the larger input scale, truncating further digits; FOAR0001
// on division by zero.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	if o.Unscaled.Sign() == 0 {
		return Decimal{}, xerrors.New(xerrors.FOAR0001, "decimal division by zero")
	}
	const extra = 18
	scale := maxInt32(d.Scale, o.Scale) + extra
	numerator := new(big.Int).Mul(d.Unscaled, pow10(scale-d.Scale+o.Scale))
	out := Decimal{Unscaled: new(big.Int).Quo(numerator, o.Unscaled), Scale: scale}
	return out, out.checkOverflow()
}

func (d Decimal) Neg() Decimal {
	return Decimal{Unscaled: new(big.Int).Neg(d.Unscaled), Scale: d.Scale}
}

func (d Decimal) Sign() int { return d.Unscaled.Sign() }

// Cmp returns -1/0/1 comparing d and o after rescaling to a common scale.
func (d Decimal) Cmp(o Decimal) int {
	a, b := rescale(d, o)
	return a.Unscaled.Cmp(b.Unscaled)
}

// AsBigInt truncates the fractional part, used for xs:integer<-decimal casts.
func (d Decimal) AsBigInt() *big.Int {
	if d.Scale <= 0 {
		return new(big.Int).Mul(d.Unscaled, pow10(-d.Scale))
	}
	return new(big.Int).Quo(d.Unscaled, pow10(d.Scale))
}

func (d Decimal) AsFloat64() float64 {
	f := new(big.Float).SetInt(d.Unscaled)
	if d.Scale != 0 {
		div := new(big.Float).SetInt(pow10(d.Scale))
		f.Quo(f, div)
	}
	out, _ := f.Float64()
	return out
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// String renders the canonical xs:decimal lexical form: no exponent, at
// least one digit before the point, a point only when Scale > 0.
func (d Decimal) String() string {
	neg := d.Unscaled.Sign() < 0
	digits := new(big.Int).Abs(d.Unscaled).String()
	if d.Scale <= 0 {
		s := digits + strings.Repeat("0", int(-d.Scale))
		if neg {
			s = "-" + s
		}
		return s
	}
	for int32(len(digits)) <= d.Scale {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-int(d.Scale)]
	fracPart := digits[len(digits)-int(d.Scale):]
	fracPart = strings.TrimRight(fracPart, "0")
	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}
