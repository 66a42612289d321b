package sequence

import "github.com/oxhq/morfx/internal/xerrors"

// Array is an ordered list of Sequences, shared by reference (a plain Go
// slice pointer suffices under Go's GC, per spec §9's resolution of the
// "reference-counted backing" design note for a GC target).
type Array struct {
	items []Sequence
}

func NewArray(items []Sequence) *Array {
	cp := make([]Sequence, len(items))
	copy(cp, items)
	return &Array{items: cp}
}

func (a *Array) Size() int { return len(a.items) }

// Get returns the 1-based indexed member, per XPath array indexing.
func (a *Array) Get(index int) (Sequence, error) {
	if index < 1 || index > len(a.items) {
		return Sequence{}, xerrors.Newf(xerrors.FOAR0002, "array index %d out of bounds (size %d)", index, len(a.items))
	}
	return a.items[index-1], nil
}

// Put returns a new array with the 1-based indexed member replaced.
func (a *Array) Put(index int, value Sequence) (*Array, error) {
	if index < 1 || index > len(a.items) {
		return nil, xerrors.Newf(xerrors.FOAR0002, "array index %d out of bounds (size %d)", index, len(a.items))
	}
	out := make([]Sequence, len(a.items))
	copy(out, a.items)
	out[index-1] = value
	return &Array{items: out}, nil
}

func (a *Array) Append(value Sequence) *Array {
	out := make([]Sequence, len(a.items), len(a.items)+1)
	copy(out, a.items)
	out = append(out, value)
	return &Array{items: out}
}

// Flatten concatenates all member sequences into one, used by array:flatten.
// Atomization's array-handling branch (spec §8 property 8 allows atomizing a
// function only if it is an array, and the result flattens all members)
// walks the members itself in Atomize and does not call Flatten.
func (a *Array) Flatten() Sequence {
	out := Empty()
	for _, s := range a.items {
		out = out.Concat(s)
	}
	return out
}

func (a *Array) Members() []Sequence {
	out := make([]Sequence, len(a.items))
	copy(out, a.items)
	return out
}
