/*
This file contains the normalization helpers between native token units and the
internal 18-digit decimal representation used by the curve solver.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
)

// MaxPrecision is the internal decimal scale; assets with more than 18
// decimals are not supported.
const MaxPrecision = 18

// ToInternal converts a native amount with the given decimal exponent into an
// internal decimal (token count, 18 fractional digits).
func ToInternal(amount sdkmath.Int, precision uint8) (sdkmath.LegacyDec, error) {
	if precision > MaxPrecision {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return sdkmath.LegacyDec{}, ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.LegacyDec{}, ErrAmountNegative
	}
	return sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(precision)), nil
}

// FromInternal converts an internal decimal back to native units, truncating
// toward zero so rounding always favors the pool.
func FromInternal(value sdkmath.LegacyDec, precision uint8) (sdkmath.Int, error) {
	if precision > MaxPrecision {
		return sdkmath.Int{}, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if value.IsNil() {
		return sdkmath.Int{}, ErrAmountNil
	}
	if value.IsNegative() {
		return sdkmath.Int{}, ErrAmountNegative
	}
	factor := sdkmath.LegacyNewDec(10).Power(uint64(precision))
	return value.Mul(factor).TruncateInt(), nil
}

// FromInternalCeil converts an internal decimal to native units rounding up.
// Used where the pool charges the user (e.g. reverse simulation offers).
func FromInternalCeil(value sdkmath.LegacyDec, precision uint8) (sdkmath.Int, error) {
	if precision > MaxPrecision {
		return sdkmath.Int{}, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if value.IsNil() {
		return sdkmath.Int{}, ErrAmountNil
	}
	if value.IsNegative() {
		return sdkmath.Int{}, ErrAmountNegative
	}
	factor := sdkmath.LegacyNewDec(10).Power(uint64(precision))
	return value.Mul(factor).Ceil().TruncateInt(), nil
}
