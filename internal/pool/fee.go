package pool

import (
	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

// feeRate returns the dynamic fee for the given internal balances:
//
//	g   = fee_gamma / (fee_gamma + 1 - 4*x0*x1/(x0+x1)^2)
//	fee = mid_fee*g + out_fee*(1-g)
//
// At a balanced pool g -> 1 and the fee is mid_fee; at extreme imbalance
// g -> 0 and the fee approaches out_fee.
func feeRate(params types.PoolParams, xp [types.PoolAssetsNum]sdkmath.LegacyDec) sdkmath.LegacyDec {
	sum := xp[0].Add(xp[1])
	if !sum.IsPositive() {
		return params.MidFee
	}
	balance := xp[0].Mul(xp[1]).MulInt64(4).Quo(sum.Mul(sum))
	g := params.FeeGamma.Quo(params.FeeGamma.Add(sdkmath.LegacyOneDec()).Sub(balance))
	return params.MidFee.Mul(g).Add(params.OutFee.Mul(sdkmath.LegacyOneDec().Sub(g)))
}

// feeSplit carves a total fee (in internal ask-side units) into the share-fee
// and maker-fee sinks; whatever is left stays in the pool for LPs.
type feeSplit struct {
	Total    sdkmath.LegacyDec
	ShareFee sdkmath.LegacyDec
	MakerFee sdkmath.LegacyDec
}

func splitFees(total sdkmath.LegacyDec, feeShare *types.FeeShareConfig, makerRate sdkmath.LegacyDec, haveMaker bool) feeSplit {
	split := feeSplit{
		Total:    total,
		ShareFee: sdkmath.LegacyZeroDec(),
		MakerFee: sdkmath.LegacyZeroDec(),
	}
	if feeShare != nil {
		split.ShareFee = total.MulInt64(int64(feeShare.Bps)).QuoInt64(10_000)
	}
	if haveMaker && makerRate.IsPositive() {
		split.MakerFee = total.Sub(split.ShareFee).Mul(makerRate)
	}
	return split
}
