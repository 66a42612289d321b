package builtins

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
)

// registerNumericFunctions wires fn:abs/ceiling/floor/round/
// round-half-to-even/sum/avg/min/max, per spec §4.7.
func registerNumericFunctions(in *installer) error {
	reg := []struct {
		name  string
		arity int
		impl  NativeFunc
	}{
		{"abs", 1, numericUnary(fnAbs)},
		{"ceiling", 1, numericUnary(fnCeiling)},
		{"floor", 1, numericUnary(fnFloor)},
		{"round", 1, fnRound},
		{"round", 2, fnRound},
		{"round-half-to-even", 1, fnRoundHalfToEven},
		{"round-half-to-even", 2, fnRoundHalfToEven},
		{"sum", 1, fnSum},
		{"sum", 2, fnSum},
		{"avg", 1, fnAvg},
		{"min", 1, fnMin},
		{"max", 1, fnMax},
	}
	for _, r := range reg {
		if err := in.fn(r.name, r.arity, statctx.FuncPlain, r.impl); err != nil {
			return err
		}
	}
	return nil
}

func numericUnary(f func(xatomic.Value) (xatomic.Value, error)) NativeFunc {
	return func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
		if args[0].IsEmpty() {
			return sequence.Empty(), nil
		}
		v, err := atom(args[0])
		if err != nil {
			return sequence.Sequence{}, err
		}
		out, err := f(v)
		if err != nil {
			return sequence.Sequence{}, err
		}
		return sequence.One(sequence.NewAtomicItem(out)), nil
	}
}

func fnAbs(v xatomic.Value) (xatomic.Value, error) {
	zero := xatomic.NewIntegerInt64(0)
	cmp, err := xatomic.CompareNumeric(v, zero)
	if err != nil {
		return xatomic.Value{}, err
	}
	if cmp >= 0 {
		return v, nil
	}
	return xatomic.UnaryMinus(v)
}

func fnCeiling(v xatomic.Value) (xatomic.Value, error) {
	if !xatomic.IsNumeric(v.Tag) {
		return xatomic.Value{}, xerrors.New(xerrors.XPTY0004, "fn:ceiling: expected a numeric argument")
	}
	switch v.Tag {
	case xatomic.TagDecimal:
		d := v.DecimalValue()
		trunc := d.AsBigInt()
		if d.Sign() > 0 && d.Cmp(xatomic.DecimalFromBigInt(trunc)) != 0 {
			trunc = new(big.Int).Add(trunc, big.NewInt(1))
		}
		return xatomic.NewDecimal(xatomic.DecimalFromBigInt(trunc)), nil
	case xatomic.TagFloat:
		return xatomic.NewFloat(float32(math.Ceil(float64(v.Float32())))), nil
	case xatomic.TagDouble:
		return xatomic.NewDouble(math.Ceil(v.Float64())), nil
	default:
		return v, nil
	}
}

func fnFloor(v xatomic.Value) (xatomic.Value, error) {
	if !xatomic.IsNumeric(v.Tag) {
		return xatomic.Value{}, xerrors.New(xerrors.XPTY0004, "fn:floor: expected a numeric argument")
	}
	switch v.Tag {
	case xatomic.TagDecimal:
		d := v.DecimalValue()
		trunc := d.AsBigInt()
		if d.Sign() < 0 && d.Cmp(xatomic.DecimalFromBigInt(trunc)) != 0 {
			trunc = new(big.Int).Sub(trunc, big.NewInt(1))
		}
		return xatomic.NewDecimal(xatomic.DecimalFromBigInt(trunc)), nil
	case xatomic.TagFloat:
		return xatomic.NewFloat(float32(math.Floor(float64(v.Float32())))), nil
	case xatomic.TagDouble:
		return xatomic.NewDouble(math.Floor(v.Float64())), nil
	default:
		return v, nil
	}
}

func fnRound(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	if args[0].IsEmpty() {
		return sequence.Empty(), nil
	}
	v, err := atom(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	precision := int32(0)
	if len(args) == 2 {
		p, err := atom(args[1])
		if err != nil {
			return sequence.Sequence{}, err
		}
		precision = int32(p.Integer().Int64())
	}
	return roundAtPrecision(v, precision, true)
}

func fnRoundHalfToEven(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	if args[0].IsEmpty() {
		return sequence.Empty(), nil
	}
	v, err := atom(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	precision := int32(0)
	if len(args) == 2 {
		p, err := atom(args[1])
		if err != nil {
			return sequence.Sequence{}, err
		}
		precision = int32(p.Integer().Int64())
	}
	return roundAtPrecision(v, precision, false)
}

// roundAtPrecision rounds v to precision decimal digits. Integer values pass
// through unchanged at precision >= 0 (rounding an integer to fewer digits
// than it has is fn:round's job only when precision < 0, handled here by
// routing the integer through Decimal too). halfUp selects fn:round's
// round-half-away-from-zero rule; fn:round-half-to-even uses the banker's
// rule internal/xatomic.RoundHalfToEven already implements.
func roundAtPrecision(v xatomic.Value, precision int32, halfUp bool) (sequence.Sequence, error) {
	dec, isFloating := decimalOf(v)
	var rounded xatomic.Decimal
	if halfUp {
		rounded = roundHalfAwayFromZero(dec, precision)
	} else {
		rounded = xatomic.RoundHalfToEven(dec, precision)
	}
	return wrapRounded(v, rounded, isFloating)
}

// roundHalfAwayFromZero mirrors internal/xatomic.RoundHalfToEven's
// shift-and-compare shape but always rounds a tie away from zero, per
// fn:round's rule (as distinct from fn:round-half-to-even's banker's rule).
func roundHalfAwayFromZero(d xatomic.Decimal, precision int32) xatomic.Decimal {
	shift := precision - d.Scale
	if shift >= 0 {
		return xatomic.Decimal{Unscaled: new(big.Int).Mul(d.Unscaled, pow10(shift)), Scale: precision}
	}
	divisor := pow10(-shift)
	q, r := new(big.Int).QuoRem(d.Unscaled, divisor, new(big.Int))
	twice := new(big.Int).Mul(new(big.Int).Abs(r), big.NewInt(2))
	if twice.Cmp(divisor) >= 0 {
		if d.Unscaled.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return xatomic.Decimal{Unscaled: q, Scale: precision}
}

func pow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func decimalOf(v xatomic.Value) (xatomic.Decimal, bool) {
	switch v.Tag {
	case xatomic.TagDecimal:
		return v.DecimalValue(), false
	case xatomic.TagFloat:
		return decimalFromFloat64(float64(v.Float32())), true
	case xatomic.TagDouble:
		return decimalFromFloat64(v.Float64()), true
	default:
		return xatomic.DecimalFromBigInt(v.Integer()), false
	}
}

func wrapRounded(orig xatomic.Value, d xatomic.Decimal, isFloating bool) (sequence.Sequence, error) {
	if !xatomic.IsNumeric(orig.Tag) {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "fn:round: expected a numeric argument")
	}
	if orig.Tag == xatomic.TagDecimal || isFloating || d.Scale < 0 {
		out, err := xatomic.Cast(xatomic.NewDecimal(d), orig.Tag)
		if err != nil {
			return sequence.Sequence{}, err
		}
		return sequence.One(sequence.NewAtomicItem(out)), nil
	}
	return sequence.One(sequence.NewAtomicItem(orig)), nil
}

// decimalFromFloat64 converts f to an exact Decimal via its shortest decimal
// textual representation, avoiding silent binary-to-decimal drift.
func decimalFromFloat64(f float64) xatomic.Decimal {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	scale := 0
	if i := strings.IndexByte(s, '.'); i >= 0 {
		scale = len(s) - i - 1
		s = s[:i] + s[i+1:]
	}
	unscaled, _ := new(big.Int).SetString(s, 10)
	if neg {
		unscaled.Neg(unscaled)
	}
	return xatomic.Decimal{Unscaled: unscaled, Scale: int32(scale)}
}

func fnSum(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	atomized, err := sequence.Atomize(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	if atomized.IsEmpty() {
		if len(args) == 2 {
			return args[1], nil
		}
		return intItem(0), nil
	}
	items := atomized.Items()
	acc := items[0].Atomic
	for _, it := range items[1:] {
		acc, err = xatomic.Add(acc, it.Atomic)
		if err != nil {
			return sequence.Sequence{}, err
		}
	}
	return sequence.One(sequence.NewAtomicItem(acc)), nil
}

func fnAvg(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	atomized, err := sequence.Atomize(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	if atomized.IsEmpty() {
		return sequence.Empty(), nil
	}
	items := atomized.Items()
	acc := items[0].Atomic
	for _, it := range items[1:] {
		acc, err = xatomic.Add(acc, it.Atomic)
		if err != nil {
			return sequence.Sequence{}, err
		}
	}
	n := xatomic.NewIntegerInt64(int64(len(items)))
	out, err := xatomic.Div(acc, n)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewAtomicItem(out)), nil
}

func fnMin(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	return minMax(args[0], -1)
}

func fnMax(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	return minMax(args[0], 1)
}

func minMax(s sequence.Sequence, want int) (sequence.Sequence, error) {
	atomized, err := sequence.Atomize(s)
	if err != nil {
		return sequence.Sequence{}, err
	}
	if atomized.IsEmpty() {
		return sequence.Empty(), nil
	}
	items := atomized.Items()
	best := items[0].Atomic
	for _, it := range items[1:] {
		cmp, err := xatomic.CompareNumeric(it.Atomic, best)
		if err != nil {
			return sequence.Sequence{}, err
		}
		if cmp == want {
			best = it.Atomic
		}
	}
	return sequence.One(sequence.NewAtomicItem(best)), nil
}
