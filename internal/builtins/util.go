package builtins

import (
	"math/big"

	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
)

// atom atomizes s and requires exactly one resulting atomic item, the
// argument shape most built-ins below need (fn:upper-case, fn:abs, ...).
func atom(s sequence.Sequence) (xatomic.Value, error) {
	atomized, err := sequence.Atomize(s)
	if err != nil {
		return xatomic.Value{}, err
	}
	if atomized.Len() != 1 {
		return xatomic.Value{}, xerrors.New(xerrors.FORG0005, "expected a single atomic value")
	}
	it, _ := atomized.At(0)
	if it.Kind != sequence.ItemAtomic {
		return xatomic.Value{}, xerrors.New(xerrors.XPTY0004, "expected an atomic item")
	}
	return it.Atomic, nil
}

// atomString atomizes s, which must yield exactly one item (as atom
// requires), and returns that item's string value.
func atomString(s sequence.Sequence) (string, error) {
	v, err := atom(s)
	if err != nil {
		return "", err
	}
	return v.StringValue(), nil
}

func boolItem(b bool) sequence.Sequence {
	return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(b)))
}

func intItem(i int64) sequence.Sequence {
	return sequence.One(sequence.NewAtomicItem(xatomic.NewIntegerInt64(i)))
}

func stringItem(s string) sequence.Sequence {
	return sequence.One(sequence.NewAtomicItem(xatomic.NewString(xatomic.TagString, s)))
}

// toFloat64 widens any numeric atomic value to a float64 for built-ins
// (fn:subsequence, fn:round-ish position arithmetic) that only need an
// approximate magnitude, never an exact-precision result.
func toFloat64(v xatomic.Value) float64 {
	switch v.Tag {
	case xatomic.TagDecimal:
		return v.DecimalValue().AsFloat64()
	case xatomic.TagFloat:
		return float64(v.Float32())
	case xatomic.TagDouble:
		return v.Float64()
	default:
		if v.Integer() != nil {
			f, _ := new(big.Float).SetInt(v.Integer()).Float64()
			return f
		}
		return 0
	}
}
