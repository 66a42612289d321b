package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/morfx/internal/xatomic"
)

func intItem(i int64) Item {
	return NewAtomicItem(xatomic.NewIntegerInt64(i))
}

func TestConcatAssociativeWithEmptyIdentity(t *testing.T) {
	a := One(intItem(1))
	b := Many([]Item{intItem(2), intItem(3)})
	c := One(intItem(4))

	left := a.Concat(b).Concat(c)
	right := a.Concat(b.Concat(c))
	assert.Equal(t, left.Items(), right.Items())

	assert.Equal(t, a.Items(), Empty().Concat(a).Items())
	assert.Equal(t, a.Items(), a.Concat(Empty()).Items())
}

func TestRangeLengthAndBounds(t *testing.T) {
	r, err := NewRange(1, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())

	empty, err := NewRange(5, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	_, err = NewRange(0, 1<<25+2)
	require.Error(t, err)
}

func TestEffectiveBooleanValueRules(t *testing.T) {
	ebv, err := Empty().EffectiveBooleanValue()
	require.NoError(t, err)
	assert.False(t, ebv)

	ebv, err = One(NewAtomicItem(xatomic.NewBoolean(true))).EffectiveBooleanValue()
	require.NoError(t, err)
	assert.True(t, ebv)

	ebv, err = One(intItem(0)).EffectiveBooleanValue()
	require.NoError(t, err)
	assert.False(t, ebv)

	ebv, err = One(intItem(7)).EffectiveBooleanValue()
	require.NoError(t, err)
	assert.True(t, ebv)
}
