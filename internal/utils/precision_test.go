package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestToInternal(t *testing.T) {
	v, err := ToInternal(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	require.InDelta(t, 1.5, v.MustFloat64(), 1e-12)

	v, err = ToInternal(sdkmath.NewInt(42), 0)
	require.NoError(t, err)
	require.InDelta(t, 42.0, v.MustFloat64(), 1e-12)

	_, err = ToInternal(sdkmath.NewInt(1), 19)
	require.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = ToInternal(sdkmath.NewInt(-1), 6)
	require.ErrorIs(t, err, ErrAmountNegative)
	_, err = ToInternal(sdkmath.Int{}, 6)
	require.ErrorIs(t, err, ErrAmountNil)
}

func TestFromInternalTruncates(t *testing.T) {
	v, err := FromInternal(sdkmath.LegacyMustNewDecFromStr("1.9999995"), 6)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1_999_999), v)

	ceil, err := FromInternalCeil(sdkmath.LegacyMustNewDecFromStr("1.9999995"), 6)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(2_000_000), ceil)

	_, err = FromInternal(sdkmath.LegacyMustNewDecFromStr("-0.1"), 6)
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestRoundTripIsLossless(t *testing.T) {
	for _, prec := range []uint8{0, 6, 8, 18} {
		amount := sdkmath.NewInt(123_456_789)
		internal, err := ToInternal(amount, prec)
		require.NoError(t, err)
		back, err := FromInternal(internal, prec)
		require.NoError(t, err)
		require.Equal(t, amount, back, "precision %d", prec)
	}
}
