package xatomic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegerDecimalSymmetricPromotion exercises spec testable property 2:
// for all integers i, op:eq(Integer(i), Decimal(Decimal::from(i))) is true,
// and the comparison is symmetric in its operand order.
func TestIntegerDecimalSymmetricPromotion(t *testing.T) {
	for _, i := range []int64{0, 1, -1, 42, -1000, 1 << 40} {
		integer := NewIntegerInt64(i)
		decimal := NewDecimal(DecimalFromInt64(i))

		eq, err := Equal(integer, decimal)
		require.NoError(t, err)
		assert.Truef(t, eq, "integer %d should equal its decimal promotion", i)

		eq, err = Equal(decimal, integer)
		require.NoError(t, err)
		assert.Truef(t, eq, "decimal promotion should equal integer %d symmetrically", i)
	}
}

func TestIntegerDoubleSymmetricPromotion(t *testing.T) {
	integer := NewIntegerInt64(7)
	double := NewDouble(7.0)

	eq, err := Equal(integer, double)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Equal(double, integer)
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestNumericEqualityRejectsUnequalValues(t *testing.T) {
	eq, err := Equal(NewIntegerInt64(1), NewDecimal(DecimalFromInt64(2)))
	require.NoError(t, err)
	assert.False(t, eq)
}

// TestNaNNeverEqualsItselfUnderOpEq covers the op:eq NaN rule: NaN compares
// unequal to everything, including another NaN, under numeric equality.
func TestNaNNeverEqualsItselfUnderOpEq(t *testing.T) {
	nan1 := NewDouble(math.NaN())
	nan2 := NewDouble(math.NaN())

	eq, err := Equal(nan1, nan2)
	require.NoError(t, err)
	assert.False(t, eq)

	eq, err = Equal(nan1, nan1)
	require.NoError(t, err)
	assert.False(t, eq)

	eq, err = Equal(NewFloat(float32(math.NaN())), NewDouble(1))
	require.NoError(t, err)
	assert.False(t, eq)
}

// TestDeepEqualTreatsNaNAsEqualToItself covers fn:deep-equal's divergence
// from op:eq: NaN equals NaN under deep-equal.
func TestDeepEqualTreatsNaNAsEqualToItself(t *testing.T) {
	nan1 := NewDouble(math.NaN())
	nan2 := NewFloat(float32(math.NaN()))

	eq, err := DeepEqual(nan1, nan1)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = DeepEqual(nan1, nan2)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = DeepEqual(nan1, NewDouble(1))
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestStringFamilyEqualityIsCodepointEqual(t *testing.T) {
	eq, err := Equal(NewString(TagString, "abc"), NewString(TagString, "abc"))
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Equal(NewString(TagString, "abc"), NewUntyped("abc"))
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Equal(NewString(TagString, "abc"), NewString(TagString, "abd"))
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestBooleanEquality(t *testing.T) {
	eq, err := Equal(NewBoolean(true), NewBoolean(true))
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Equal(NewBoolean(true), NewBoolean(false))
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestHexBinaryEqualityRejectsMixedSubtype(t *testing.T) {
	eq, err := Equal(NewHexBinary([]byte{0x01}), NewBase64Binary([]byte{0x01}))
	require.NoError(t, err)
	assert.False(t, eq)

	eq, err = Equal(NewHexBinary([]byte{0x01, 0x02}), NewHexBinary([]byte{0x01, 0x02}))
	require.NoError(t, err)
	assert.True(t, eq)
}
