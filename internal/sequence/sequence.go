package sequence

import (
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
)

// RangeMaxLength bounds a lazy integer range's length, per spec §3 ("length
// ≤ 2²⁵") and testable property 5.
const RangeMaxLength = 1 << 25

type seqShape int

const (
	shapeEmpty seqShape = iota
	shapeOne
	shapeMany
	shapeRange
)

// Sequence is the ordered, finite container of Items that is XPath's
// principal data type. It keeps one of four physical shapes (spec §3):
// empty, a single item, a materialized slice, or a lazy integer range —
// the last avoiding an O(n) allocation for "1 to 1000000"-style ranges
// until something actually atomizes or indexes into it.
type Sequence struct {
	shape      seqShape
	one        Item
	many       []Item
	rangeStart int64
	rangeEnd   int64 // exclusive
}

func Empty() Sequence { return Sequence{shape: shapeEmpty} }

func One(it Item) Sequence { return Sequence{shape: shapeOne, one: it} }

func Many(items []Item) Sequence {
	switch len(items) {
	case 0:
		return Empty()
	case 1:
		return One(items[0])
	default:
		return Sequence{shape: shapeMany, many: items}
	}
}

// NewRange builds the lazy sequence of integers [start, end], inclusive on
// both ends per XPath's "to" operator; construction fails with FOAR0002 if
// the length would exceed RangeMaxLength.
func NewRange(start, end int64) (Sequence, error) {
	if end < start {
		return Empty(), nil
	}
	length := end - start + 1
	if length > RangeMaxLength {
		return Sequence{}, xerrors.Newf(xerrors.FOAR0002, "range length %d exceeds maximum %d", length, RangeMaxLength)
	}
	if length == 1 {
		return One(NewAtomicItem(xatomic.NewIntegerInt64(start))), nil
	}
	return Sequence{shape: shapeRange, rangeStart: start, rangeEnd: end + 1}, nil
}

func (s Sequence) Len() int {
	switch s.shape {
	case shapeEmpty:
		return 0
	case shapeOne:
		return 1
	case shapeMany:
		return len(s.many)
	case shapeRange:
		return int(s.rangeEnd - s.rangeStart)
	}
	return 0
}

func (s Sequence) IsEmpty() bool { return s.Len() == 0 }

// At returns the 0-based indexed item.
func (s Sequence) At(i int) (Item, bool) {
	if i < 0 || i >= s.Len() {
		return Item{}, false
	}
	switch s.shape {
	case shapeOne:
		return s.one, true
	case shapeMany:
		return s.many[i], true
	case shapeRange:
		return NewAtomicItem(xatomic.NewIntegerInt64(s.rangeStart + int64(i))), true
	}
	return Item{}, false
}

// Items materializes the sequence into a slice; ranges are expanded here,
// so callers that can stream should prefer At/Len for large ranges.
func (s Sequence) Items() []Item {
	switch s.shape {
	case shapeEmpty:
		return nil
	case shapeOne:
		return []Item{s.one}
	case shapeMany:
		return s.many
	case shapeRange:
		out := make([]Item, 0, s.Len())
		for v := s.rangeStart; v < s.rangeEnd; v++ {
			out = append(out, NewAtomicItem(xatomic.NewIntegerInt64(v)))
		}
		return out
	}
	return nil
}

// Concat implements sequence concatenation (the comma operator / BuildPush
// flattening), associative with Empty as identity per spec §8 property 3.
func (s Sequence) Concat(other Sequence) Sequence {
	if s.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return s
	}
	out := make([]Item, 0, s.Len()+other.Len())
	out = append(out, s.Items()...)
	out = append(out, other.Items()...)
	return Many(out)
}

// EffectiveBooleanValue implements the XPath EBV rule: empty -> false;
// first-item-is-boolean -> that boolean; first-item-is-string/numeric (and
// length 1) -> nonempty-string / nonzero-nonNaN; a node sequence of length
// > 1 is always true; anything else (e.g. a function item, or length > 1
// of non-nodes) raises FORG0006.
func (s Sequence) EffectiveBooleanValue() (bool, error) {
	if s.IsEmpty() {
		return false, nil
	}
	first, _ := s.At(0)
	if first.Kind == ItemNode {
		return true, nil
	}
	if s.Len() > 1 {
		return false, xerrors.New(xerrors.FORG0006, "effective boolean value of a sequence of more than one item requires nodes")
	}
	if first.Kind != ItemAtomic {
		return false, xerrors.New(xerrors.FORG0006, "effective boolean value is undefined for a function item")
	}
	v := first.Atomic
	switch {
	case v.Tag == xatomic.TagBoolean:
		return v.Bool(), nil
	case xatomic.IsStringFamily(v.Tag) || v.Tag == xatomic.TagUntyped:
		return v.StringValue() != "", nil
	case xatomic.IsNumeric(v.Tag):
		cmp, err := xatomic.CompareNumeric(v, xatomic.NewIntegerInt64(0))
		if err != nil {
			return false, err
		}
		if cmp == 2 { // NaN is never true under EBV
			return false, nil
		}
		return cmp != 0, nil
	}
	return false, xerrors.New(xerrors.FORG0006, "effective boolean value is undefined for this atomic type")
}

// StringValue returns fn:string()'s result: the string-value of the single
// item, per XPath ("fn:string" on a sequence of length != 1 is a static
// error in real XPath; here callers are expected to have already reduced to
// a single item via ReturnConvert/argument coercion).
func (s Sequence) StringValue() string {
	if s.IsEmpty() {
		return ""
	}
	first, _ := s.At(0)
	return first.StringValue()
}
