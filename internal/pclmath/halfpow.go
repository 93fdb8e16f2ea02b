package pclmath

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

var (
	half = sdkmath.LegacyNewDecWithPrec(5, 1)

	// halfpowTol terminates the binomial series once a term drops below 1e-10.
	halfpowTol = sdkmath.LegacyNewDecWithPrec(1, 10)
)

// halfpowMaxTerms caps the fractional series (Curve lineage uses 255).
const halfpowMaxTerms = 255

// HalfPow computes 0.5^power for non-negative power. The integer part is an
// exact square-and-multiply; the fractional part is the truncated binomial
// expansion of (1 - 1/2)^frac.
func HalfPow(power sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if power.IsNegative() {
		return zero, fmt.Errorf("%w: negative exponent %s", types.ErrInvalidPoolParams, power)
	}
	intPart := power.TruncateInt64()
	frac := power.Sub(sdkmath.LegacyNewDec(intPart))

	result := powHalfInt(uint64(intPart))
	if frac.IsZero() || result.IsZero() {
		return result, nil
	}

	term := one
	sum := one
	neg := false
	for i := int64(1); i <= halfpowMaxTerms; i++ {
		c := frac.Sub(sdkmath.LegacyNewDec(i - 1))
		if c.IsNegative() {
			c = c.Neg()
			neg = !neg
		}
		term = term.Mul(c).Mul(half).QuoInt64(i)
		// the series multiplier itself is -1/2
		neg = !neg
		if neg {
			sum = sum.Sub(term)
		} else {
			sum = sum.Add(term)
		}
		if term.LT(halfpowTol) {
			return result.Mul(sum), nil
		}
	}
	return zero, types.WrapNotConverging("half_float_pow", types.ErrNotConverging)
}

// powHalfInt returns (1/2)^n by repeated squaring. Underflows to zero for
// large n, which is the right limit for the EMA weight.
func powHalfInt(n uint64) sdkmath.LegacyDec {
	result := one
	base := half
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		n >>= 1
	}
	return result
}
