/*

Invariant solver for the concentrated-liquidity curve.

For internal balances (x0, x1) and parameters (A, gamma) with N = 2 the curve
is the positive root D of

	f(D) = K*D*(x0+x1) + x0*x1 - K*D^2 - D^2/4

where K0 = 4*x0*x1/D^2 and K = A*gamma^2*K0 / (gamma + 1 - K0)^2.

All arithmetic runs on cosmossdk.io/math LegacyDec: 18 fractional digits,
signed, so the transient negative residuals of the Newton steps need no
separate representation.

*/

package pclmath

import (
	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

// MaxIterations caps both Newton loops.
const MaxIterations = 64

var (
	zero = sdkmath.LegacyZeroDec()
	one  = sdkmath.LegacyOneDec()
	two  = sdkmath.LegacyNewDec(2)
	four = sdkmath.LegacyNewDec(4)

	// convergenceTol stops the iteration once successive estimates agree to
	// 1e-12 internal units.
	convergenceTol = sdkmath.LegacyNewDecWithPrec(1, 12)
)

// GeometricMean returns sqrt(x0*x1).
func GeometricMean(x0, x1 sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !x0.IsPositive() || !x1.IsPositive() {
		return zero, types.ErrEmptyPool
	}
	gm, err := x0.Mul(x1).ApproxSqrt()
	if err != nil {
		return zero, types.WrapNotConverging("geometric mean", types.ErrNotConverging)
	}
	return gm, nil
}

// curveK0 = x0*x1*N^2 / D^2 with N = 2.
func curveK0(x0, x1, d sdkmath.LegacyDec) sdkmath.LegacyDec {
	return x0.Mul(x1).Mul(four).Quo(d.Mul(d))
}

// curveK = A*gamma^2*K0 / (gamma + 1 - K0)^2.
func curveK(k0, amp, gamma sdkmath.LegacyDec) sdkmath.LegacyDec {
	g := gamma.Add(one).Sub(k0)
	return amp.Mul(gamma).Mul(gamma).Mul(k0).Quo(g.Mul(g))
}

// curveF evaluates f(D) at the given balances.
func curveF(d, x0, x1, amp, gamma sdkmath.LegacyDec) sdkmath.LegacyDec {
	k0 := curveK0(x0, x1, d)
	k := curveK(k0, amp, gamma)
	sum := x0.Add(x1)
	d2 := d.Mul(d)
	return k.Mul(d).Mul(sum).Add(x0.Mul(x1)).Sub(k.Mul(d2)).Sub(d2.Quo(four))
}

// dfdD is the analytic derivative of f with respect to D.
//
//	dK0/dD = -2*K0/D
//	dK/dD  = A*gamma^2 * dK0/dD * (G + 2*K0) / G^3,  G = gamma + 1 - K0
//	df/dD  = dK*D*(S - D) + K*(S - 2D) - D/2
func dfdD(d, x0, x1, amp, gamma sdkmath.LegacyDec) sdkmath.LegacyDec {
	k0 := curveK0(x0, x1, d)
	g := gamma.Add(one).Sub(k0)
	k := amp.Mul(gamma).Mul(gamma).Mul(k0).Quo(g.Mul(g))
	dk0 := two.Neg().Mul(k0).Quo(d)
	dk := amp.Mul(gamma).Mul(gamma).Mul(dk0).Mul(g.Add(two.Mul(k0))).Quo(g.Mul(g).Mul(g))
	sum := x0.Add(x1)
	return dk.Mul(d).Mul(sum.Sub(d)).
		Add(k.Mul(sum.Sub(two.Mul(d)))).
		Sub(d.Quo(two))
}

// dfdX is the analytic derivative of f with respect to the unknown balance x,
// the other balance o and D held fixed.
//
//	dK0/dx = K0/x
//	df/dx  = dK*D*(x + o - D) + K*D + o
func dfdX(x, o, d, amp, gamma sdkmath.LegacyDec) sdkmath.LegacyDec {
	k0 := x.Mul(o).Mul(four).Quo(d.Mul(d))
	g := gamma.Add(one).Sub(k0)
	k := amp.Mul(gamma).Mul(gamma).Mul(k0).Quo(g.Mul(g))
	dk0 := k0.Quo(x)
	dk := amp.Mul(gamma).Mul(gamma).Mul(dk0).Mul(g.Add(two.Mul(k0))).Quo(g.Mul(g).Mul(g))
	return dk.Mul(d).Mul(x.Add(o).Sub(d)).Add(k.Mul(d)).Add(o)
}

// NewtonD computes the invariant D from internal balances. The initial guess
// is the constant-product invariant 2*sqrt(x0*x1), which is exact at gamma->0.
func NewtonD(x0, x1, amp, gamma sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	gm, err := GeometricMean(x0, x1)
	if err != nil {
		return zero, err
	}
	d := two.Mul(gm)
	for i := 0; i < MaxIterations; i++ {
		deriv := dfdD(d, x0, x1, amp, gamma)
		if deriv.IsZero() {
			return zero, types.WrapNotConverging("newton_d", types.ErrNotConverging)
		}
		dNext := d.Sub(curveF(d, x0, x1, amp, gamma).Quo(deriv))
		if !dNext.IsPositive() {
			// keep the iterate in the positive domain
			dNext = d.Quo(two)
		}
		if dNext.Sub(d).Abs().LTE(convergenceTol) {
			return dNext, nil
		}
		d = dNext
	}
	return zero, types.WrapNotConverging("newton_d", types.ErrNotConverging)
}

// NewtonY solves one pool balance given the invariant and the opposite
// balance. The initial guess D^2/(4*o) is again the constant-product solution.
func NewtonY(other, amp, gamma, d sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !other.IsPositive() {
		return zero, types.ErrEmptyPool
	}
	x := d.Mul(d).Quo(four.Mul(other))
	for i := 0; i < MaxIterations; i++ {
		deriv := dfdX(x, other, d, amp, gamma)
		if deriv.IsZero() {
			return zero, types.WrapNotConverging("newton_y", types.ErrNotConverging)
		}
		xNext := x.Sub(curveF(d, x, other, amp, gamma).Quo(deriv))
		if !xNext.IsPositive() {
			// keep the iterate in the positive domain
			xNext = x.Quo(two)
		}
		if xNext.Sub(x).Abs().LTE(convergenceTol) {
			return xNext, nil
		}
		x = xNext
	}
	return zero, types.WrapNotConverging("newton_y", types.ErrNotConverging)
}
