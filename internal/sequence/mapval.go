package sequence

import (
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
)

// mapKey is a comparable Go value standing in for "typed equality" over an
// xatomic.Value used as a map key (spec's MapKey: "keys of atomic subtype
// K"). keyOf normalizes first: a numeric value that converts to xs:decimal
// is keyed by that exact decimal value (so integer 1, decimal 1.0 and double
// 1 are one key), string-family and untyped values share one string key, and
// a QName is keyed by (URI, local) without its prefix. Any other value is
// keyed by its tag and canonical string form.
type mapKey struct {
	tag xatomic.Tag
	rep string
}

func keyOf(v xatomic.Value) mapKey {
	switch {
	case xatomic.IsNumeric(v.Tag):
		if d, err := xatomic.Cast(v, xatomic.TagDecimal); err == nil {
			return mapKey{tag: xatomic.TagDecimal, rep: d.StringValue()}
		}
	case xatomic.IsStringFamily(v.Tag) || v.Tag == xatomic.TagUntyped:
		return mapKey{tag: xatomic.TagString, rep: v.StringValue()}
	case v.Tag == xatomic.TagQName:
		return mapKey{tag: v.Tag, rep: "Q{" + v.QName().URI + "}" + v.QName().Local}
	}
	return mapKey{tag: v.Tag, rep: v.StringValue()}
}

// entry preserves declaration order for iteration (map:keys et al.) even
// though lookups go through the keyIndex.
type entry struct {
	key   xatomic.Value
	value Sequence
}

// Map is an immutable XPath map: atomic keys (unique under typed equality,
// per spec §3) to Sequence values, shared by reference.
type Map struct {
	entries  []entry
	keyIndex map[mapKey]int
}

func NewEmptyMap() *Map {
	return &Map{keyIndex: make(map[mapKey]int)}
}

// NewMap builds a Map from an ordered key/value list, raising XQDY0137 on a
// duplicate key, per spec §4.3 ("MapNew ... fail XQDY0137 on duplicate map
// keys").
func NewMap(keys []xatomic.Value, values []Sequence) (*Map, error) {
	m := NewEmptyMap()
	for i, k := range keys {
		if _, exists := m.keyIndex[keyOf(k)]; exists {
			return nil, xerrors.Newf(xerrors.XQDY0137, "duplicate map key %q", k.StringValue())
		}
		m.keyIndex[keyOf(k)] = len(m.entries)
		m.entries = append(m.entries, entry{key: k, value: values[i]})
	}
	return m, nil
}

func (m *Map) Size() int { return len(m.entries) }

func (m *Map) Get(key xatomic.Value) (Sequence, bool) {
	idx, ok := m.keyIndex[keyOf(key)]
	if !ok {
		return Sequence{}, false
	}
	return m.entries[idx].value, true
}

// Put returns a new Map with key bound to value, replacing any existing
// binding (maps are immutable; mutation always yields a new Map).
func (m *Map) Put(key xatomic.Value, value Sequence) *Map {
	out := &Map{keyIndex: make(map[mapKey]int, len(m.entries)+1)}
	for _, e := range m.entries {
		if keyOf(e.key) == keyOf(key) {
			continue
		}
		out.keyIndex[keyOf(e.key)] = len(out.entries)
		out.entries = append(out.entries, e)
	}
	out.keyIndex[keyOf(key)] = len(out.entries)
	out.entries = append(out.entries, entry{key: key, value: value})
	return out
}

func (m *Map) Keys() []xatomic.Value {
	out := make([]xatomic.Value, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.key
	}
	return out
}

// Merge combines m with other, with other's bindings winning on conflict,
// matching map:merge's default "use-first"/"use-last"-less XPath semantics
// simplified to last-wins (the duplicates option is out of scope here).
func (m *Map) Merge(other *Map) *Map {
	out := m
	for _, e := range other.entries {
		out = out.Put(e.key, e.value)
	}
	return out
}
