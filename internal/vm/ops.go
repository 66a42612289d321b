package vm

import (
	"strings"

	"github.com/oxhq/morfx/internal/ir"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xnode"
)

// singletonAtomic atomizes s and requires exactly one resulting item,
// the argument shape every arithmetic/comparison/range operator needs.
func singletonAtomic(s sequence.Sequence) (xatomic.Value, error) {
	atomized, err := sequence.Atomize(s)
	if err != nil {
		return xatomic.Value{}, err
	}
	if atomized.Len() != 1 {
		return xatomic.Value{}, xerrors.New(xerrors.FORG0005, "expected a single atomic value")
	}
	it, _ := atomized.At(0)
	return it.Atomic, nil
}

func arithmetic(left, right sequence.Sequence, op func(a, b xatomic.Value) (xatomic.Value, error)) (sequence.Sequence, error) {
	if left.IsEmpty() || right.IsEmpty() {
		return sequence.Empty(), nil
	}
	a, err := singletonAtomic(left)
	if err != nil {
		return sequence.Sequence{}, err
	}
	b, err := singletonAtomic(right)
	if err != nil {
		return sequence.Sequence{}, err
	}
	result, err := op(a, b)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewAtomicItem(result)), nil
}

// compareAtomic returns -1/0/1, or 2 for an unordered pair (a NaN operand),
// per spec §4.5's canonical comparison rule per type family.
func compareAtomic(a, b xatomic.Value) (int, error) {
	switch {
	case xatomic.IsNumeric(a.Tag) && xatomic.IsNumeric(b.Tag):
		return xatomic.CompareNumeric(a, b)
	case (xatomic.IsStringFamily(a.Tag) || a.Tag == xatomic.TagUntyped) &&
		(xatomic.IsStringFamily(b.Tag) || b.Tag == xatomic.TagUntyped):
		return strings.Compare(a.StringValue(), b.StringValue()), nil
	case a.Tag == xatomic.TagBoolean && b.Tag == xatomic.TagBoolean:
		ai, bi := 0, 0
		if a.Bool() {
			ai = 1
		}
		if b.Bool() {
			bi = 1
		}
		return ai - bi, nil
	}
	return 0, xerrors.New(xerrors.XPTY0004, "values are not comparable")
}

func valueCompare(op ir.BinOp, left, right sequence.Sequence) (sequence.Sequence, error) {
	la, err := sequence.Atomize(left)
	if err != nil {
		return sequence.Sequence{}, err
	}
	ra, err := sequence.Atomize(right)
	if err != nil {
		return sequence.Sequence{}, err
	}
	if la.IsEmpty() || ra.IsEmpty() {
		return sequence.Empty(), nil
	}
	if la.Len() != 1 || ra.Len() != 1 {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "value comparison requires singleton operands")
	}
	ai, _ := la.At(0)
	bi, _ := ra.At(0)
	cmp, err := compareAtomic(ai.Atomic, bi.Atomic)
	if err != nil {
		return sequence.Sequence{}, err
	}
	var result bool
	if cmp == 2 {
		result = op == ir.BNe
	} else {
		switch op {
		case ir.BEq:
			result = cmp == 0
		case ir.BNe:
			result = cmp != 0
		case ir.BLt:
			result = cmp < 0
		case ir.BLe:
			result = cmp <= 0
		case ir.BGt:
			result = cmp > 0
		case ir.BGe:
			result = cmp >= 0
		}
	}
	return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(result))), nil
}

// generalCompare implements the existentially-quantified "general"
// comparison operators: true iff some pair of atomized items satisfies op.
func generalCompare(op ir.BinOp, left, right sequence.Sequence) (sequence.Sequence, error) {
	la, err := sequence.Atomize(left)
	if err != nil {
		return sequence.Sequence{}, err
	}
	ra, err := sequence.Atomize(right)
	if err != nil {
		return sequence.Sequence{}, err
	}
	for _, x := range la.Items() {
		for _, y := range ra.Items() {
			cmp, err := compareAtomic(x.Atomic, y.Atomic)
			if err != nil {
				return sequence.Sequence{}, err
			}
			var ok bool
			if cmp == 2 {
				ok = op == ir.BGeneralNe
			} else {
				switch op {
				case ir.BGeneralEq:
					ok = cmp == 0
				case ir.BGeneralNe:
					ok = cmp != 0
				case ir.BGeneralLt:
					ok = cmp < 0
				case ir.BGeneralLe:
					ok = cmp <= 0
				case ir.BGeneralGt:
					ok = cmp > 0
				case ir.BGeneralGe:
					ok = cmp >= 0
				}
			}
			if ok {
				return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(true))), nil
			}
		}
	}
	return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(false))), nil
}

func nodeIs(left, right sequence.Sequence) (sequence.Sequence, error) {
	if left.IsEmpty() || right.IsEmpty() {
		return sequence.Empty(), nil
	}
	if left.Len() != 1 || right.Len() != 1 {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "'is' requires singleton node operands")
	}
	a, _ := left.At(0)
	b, _ := right.At(0)
	if a.Kind != sequence.ItemNode || b.Kind != sequence.ItemNode {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "'is' requires node operands")
	}
	return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(a.Node.Equal(b.Node)))), nil
}

func nodeOrder(left, right sequence.Sequence, precedes bool) (sequence.Sequence, error) {
	if left.IsEmpty() || right.IsEmpty() {
		return sequence.Empty(), nil
	}
	if left.Len() != 1 || right.Len() != 1 {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "'<<'/'>>' requires singleton node operands")
	}
	a, _ := left.At(0)
	b, _ := right.At(0)
	if a.Kind != sequence.ItemNode || b.Kind != sequence.ItemNode {
		return sequence.Sequence{}, xerrors.New(xerrors.XPTY0004, "'<<'/'>>' requires node operands")
	}
	var result bool
	if precedes {
		result = a.Node.Order().Less(b.Node.Order())
	} else {
		result = b.Node.Order().Less(a.Node.Order())
	}
	return sequence.One(sequence.NewAtomicItem(xatomic.NewBoolean(result))), nil
}

func setUnion(left, right sequence.Sequence) (sequence.Sequence, error) {
	if err := requireNodes(left); err != nil {
		return sequence.Sequence{}, err
	}
	if err := requireNodes(right); err != nil {
		return sequence.Sequence{}, err
	}
	return dedupSortNodes(left.Concat(right))
}

func setIntersect(left, right sequence.Sequence) (sequence.Sequence, error) {
	if err := requireNodes(left); err != nil {
		return sequence.Sequence{}, err
	}
	if err := requireNodes(right); err != nil {
		return sequence.Sequence{}, err
	}
	rset := make(map[xnode.Order]bool)
	for _, it := range right.Items() {
		rset[it.Node.Order()] = true
	}
	var out []sequence.Item
	for _, it := range left.Items() {
		if rset[it.Node.Order()] {
			out = append(out, it)
		}
	}
	return dedupSortNodes(sequence.Many(out))
}

func setExcept(left, right sequence.Sequence) (sequence.Sequence, error) {
	if err := requireNodes(left); err != nil {
		return sequence.Sequence{}, err
	}
	if err := requireNodes(right); err != nil {
		return sequence.Sequence{}, err
	}
	rset := make(map[xnode.Order]bool)
	for _, it := range right.Items() {
		rset[it.Node.Order()] = true
	}
	var out []sequence.Item
	for _, it := range left.Items() {
		if !rset[it.Node.Order()] {
			out = append(out, it)
		}
	}
	return dedupSortNodes(sequence.Many(out))
}

func requireNodes(s sequence.Sequence) error {
	for _, it := range s.Items() {
		if it.Kind != sequence.ItemNode {
			return xerrors.New(xerrors.XPTY0004, "node-set operator requires node operands")
		}
	}
	return nil
}

func rangeOp(left, right sequence.Sequence) (sequence.Sequence, error) {
	if left.IsEmpty() || right.IsEmpty() {
		return sequence.Empty(), nil
	}
	a, err := singletonAtomic(left)
	if err != nil {
		return sequence.Sequence{}, err
	}
	b, err := singletonAtomic(right)
	if err != nil {
		return sequence.Sequence{}, err
	}
	ai, err := xatomic.Cast(a, xatomic.TagInteger)
	if err != nil {
		return sequence.Sequence{}, err
	}
	bi, err := xatomic.Cast(b, xatomic.TagInteger)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.NewRange(ai.Integer().Int64(), bi.Integer().Int64())
}

func evalBinary(op ir.BinOp, left, right sequence.Sequence) (sequence.Sequence, error) {
	switch op {
	case ir.BAdd:
		return arithmetic(left, right, xatomic.Add)
	case ir.BSub:
		return arithmetic(left, right, xatomic.Sub)
	case ir.BMul:
		return arithmetic(left, right, xatomic.Mul)
	case ir.BDiv:
		return arithmetic(left, right, xatomic.Div)
	case ir.BIDiv:
		return arithmetic(left, right, xatomic.IDiv)
	case ir.BMod:
		return arithmetic(left, right, xatomic.Mod)
	case ir.BEq, ir.BNe, ir.BLt, ir.BLe, ir.BGt, ir.BGe:
		return valueCompare(op, left, right)
	case ir.BGeneralEq, ir.BGeneralNe, ir.BGeneralLt, ir.BGeneralLe, ir.BGeneralGt, ir.BGeneralGe:
		return generalCompare(op, left, right)
	case ir.BIs:
		return nodeIs(left, right)
	case ir.BPrecedes:
		return nodeOrder(left, right, true)
	case ir.BFollows:
		return nodeOrder(left, right, false)
	case ir.BUnion:
		return setUnion(left, right)
	case ir.BIntersect:
		return setIntersect(left, right)
	case ir.BExcept:
		return setExcept(left, right)
	case ir.BRange:
		return rangeOp(left, right)
	}
	return sequence.Sequence{}, xerrors.Newf(xerrors.XPTY0004, "unhandled binary operator %v", op)
}

func evalUnary(op ir.UnOp, operand sequence.Sequence) (sequence.Sequence, error) {
	if operand.IsEmpty() {
		return sequence.Empty(), nil
	}
	v, err := singletonAtomic(operand)
	if err != nil {
		return sequence.Sequence{}, err
	}
	var result xatomic.Value
	switch op {
	case ir.UNeg:
		result, err = xatomic.UnaryMinus(v)
	case ir.UPos:
		result, err = xatomic.UnaryPlus(v)
	default:
		return sequence.Sequence{}, xerrors.Newf(xerrors.XPTY0004, "unhandled unary operator %v", op)
	}
	if err != nil {
		return sequence.Sequence{}, err
	}
	return sequence.One(sequence.NewAtomicItem(result)), nil
}
