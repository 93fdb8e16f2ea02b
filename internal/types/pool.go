/*

Pool configuration and mutable state for the concentrated-liquidity pair.

All fractional values are cosmossdk.io/math LegacyDec (18 decimal digits,
signed). Native token amounts stay sdkmath.Int until they are normalized into
internal units by the precision registry.

*/

package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Hard validation bounds. Confirmed against the pool-type test vectors; values
// outside these ranges are known to make the solver diverge.
var (
	MinAmp   = sdkmath.LegacyOneDec()
	MaxAmp   = sdkmath.LegacyNewDec(10_000)
	MinGamma = sdkmath.LegacyNewDecWithPrec(1, 8) // 1e-8
	MaxGamma = sdkmath.LegacyNewDecWithPrec(2, 2) // 0.02
	// MaxAmpChange bounds the ratio between consecutive amp targets.
	MaxAmpChange = sdkmath.LegacyNewDec(10)
	// MaxAllowedSlippage caps max_spread and slippage_tolerance.
	MaxAllowedSlippage = sdkmath.LegacyNewDecWithPrec(5, 1) // 0.5
)

// MinRampInterval is the minimum delay between two ramp starts.
const MinRampInterval = 24 * time.Hour

// MinimumLiquidity is permanently locked out of the first minted share.
var MinimumLiquidity = sdkmath.NewInt(1_000)

// PoolParams are the curve and fee parameters fixed at instantiation and
// mutable only through the gated update path.
type PoolParams struct {
	MidFee               sdkmath.LegacyDec `json:"mid_fee"`
	OutFee               sdkmath.LegacyDec `json:"out_fee"`
	FeeGamma             sdkmath.LegacyDec `json:"fee_gamma"`
	RepegProfitThreshold sdkmath.LegacyDec `json:"repeg_profit_threshold"`
	MinPriceScaleDelta   sdkmath.LegacyDec `json:"min_price_scale_delta"`
	MaHalfTime           int64             `json:"ma_half_time"` // seconds
	PriceScale           sdkmath.LegacyDec `json:"price_scale"`  // initial internal price
}

// Validate enforces the §3 constraints on pool parameters.
func (p PoolParams) Validate() error {
	if p.MidFee.IsNegative() || p.OutFee.LT(p.MidFee) {
		return fmt.Errorf("%w: out_fee must be >= mid_fee >= 0", ErrInvalidPoolParams)
	}
	if !p.FeeGamma.IsPositive() || p.FeeGamma.GT(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("%w: fee_gamma must be in (0, 1]", ErrInvalidPoolParams)
	}
	if p.RepegProfitThreshold.IsNegative() || p.MinPriceScaleDelta.IsNegative() {
		return fmt.Errorf("%w: repeg thresholds must be non-negative", ErrInvalidPoolParams)
	}
	if p.MaHalfTime <= 0 {
		return fmt.Errorf("%w: ma_half_time must be positive", ErrInvalidPoolParams)
	}
	if !p.PriceScale.IsPositive() {
		return fmt.Errorf("%w: price_scale must be positive", ErrInvalidPoolParams)
	}
	return nil
}

// FeeShareConfig optionally routes a cut of every trade fee to an external
// recipient. Bps is in (0, 10000].
type FeeShareConfig struct {
	Bps       uint16 `json:"bps"`
	Recipient string `json:"recipient"`
}

func (f FeeShareConfig) Validate() error {
	if f.Bps == 0 || f.Bps > 10_000 {
		return fmt.Errorf("%w: fee share bps must be in (0, 10000]", ErrInvalidPoolParams)
	}
	if f.Recipient == "" {
		return fmt.Errorf("%w: fee share recipient must be set", ErrInvalidPoolParams)
	}
	return nil
}

// AmpGamma holds the amplification/gamma ramp. Values interpolate linearly
// between InitialTime and FutureTime and clamp outside the interval.
type AmpGamma struct {
	InitialAmp   sdkmath.LegacyDec `json:"initial_amp"`
	InitialGamma sdkmath.LegacyDec `json:"initial_gamma"`
	FutureAmp    sdkmath.LegacyDec `json:"future_amp"`
	FutureGamma  sdkmath.LegacyDec `json:"future_gamma"`
	InitialTime  int64             `json:"initial_time"` // unix seconds
	FutureTime   int64             `json:"future_time"`
}

// Values returns (amp, gamma) at the given block time.
func (ag AmpGamma) Values(now int64) (sdkmath.LegacyDec, sdkmath.LegacyDec) {
	if now >= ag.FutureTime || ag.FutureTime == ag.InitialTime {
		return ag.FutureAmp, ag.FutureGamma
	}
	if now <= ag.InitialTime {
		return ag.InitialAmp, ag.InitialGamma
	}
	total := sdkmath.LegacyNewDec(ag.FutureTime - ag.InitialTime)
	left := sdkmath.LegacyNewDec(ag.FutureTime - now)
	// amp = future - (future-initial) * left/total, same for gamma
	amp := ag.FutureAmp.Sub(ag.FutureAmp.Sub(ag.InitialAmp).Mul(left).Quo(total))
	gamma := ag.FutureGamma.Sub(ag.FutureGamma.Sub(ag.InitialGamma).Mul(left).Quo(total))
	return amp, gamma
}

// ValidateAmpGamma checks a single (amp, gamma) point against the hard bounds.
func ValidateAmpGamma(amp, gamma sdkmath.LegacyDec) error {
	if amp.LT(MinAmp) || amp.GT(MaxAmp) {
		return fmt.Errorf("%w: amp %s outside [%s, %s]", ErrAmpGammaOutOfBounds, amp, MinAmp, MaxAmp)
	}
	if gamma.LT(MinGamma) || gamma.GT(MaxGamma) {
		return fmt.Errorf("%w: gamma %s outside [%s, %s]", ErrAmpGammaOutOfBounds, gamma, MinGamma, MaxGamma)
	}
	return nil
}

// PriceState is the repegging state machine payload.
type PriceState struct {
	PriceScale      sdkmath.LegacyDec `json:"price_scale"`
	LastPrices      sdkmath.LegacyDec `json:"last_prices"`
	PriceOracle     sdkmath.LegacyDec `json:"price_oracle"`
	LastPriceUpdate int64             `json:"last_price_update"` // unix seconds
	XcpProfit       sdkmath.LegacyDec `json:"xcp_profit"`
	XcpProfitReal   sdkmath.LegacyDec `json:"xcp_profit_real"`
	D               sdkmath.LegacyDec `json:"d"`
	NotAdjusted     bool              `json:"not_adjusted"`
}

// FeeInfo is what the factory reports for this pair type.
type FeeInfo struct {
	TotalFeeRate sdkmath.LegacyDec `json:"total_fee_rate"`
	MakerFeeRate sdkmath.LegacyDec `json:"maker_fee_rate"`
	FeeAddress   string            `json:"fee_address,omitempty"`
}

// PairInfo is the static pair metadata returned by the Pair query.
type PairInfo struct {
	AssetInfos [PoolAssetsNum]AssetInfo `json:"asset_infos"`
	LpDenom    string                   `json:"lp_denom"`
	PairType   string                   `json:"pair_type"`
	Factory    string                   `json:"factory_addr"`
}

// SimulationResponse mirrors the Simulation/ReverseSimulation query payloads.
type SimulationResponse struct {
	ReturnAmount     sdkmath.Int `json:"return_amount"`
	SpreadAmount     sdkmath.Int `json:"spread_amount"`
	CommissionAmount sdkmath.Int `json:"commission_amount"`
}

// ReverseSimulationResponse estimates the offer needed for a target ask.
type ReverseSimulationResponse struct {
	OfferAmount      sdkmath.Int `json:"offer_amount"`
	SpreadAmount     sdkmath.Int `json:"spread_amount"`
	CommissionAmount sdkmath.Int `json:"commission_amount"`
}

// PoolResponse reports current balances and LP supply.
type PoolResponse struct {
	Assets        [PoolAssetsNum]Asset `json:"assets"`
	TotalLpShares sdkmath.Int          `json:"total_lp_shares"`
}

// CumulativePricesResponse exposes the TWAP accumulators per ordered pair.
type CumulativePricesResponse struct {
	Assets           [PoolAssetsNum]Asset `json:"assets"`
	TotalLpShares    sdkmath.Int          `json:"total_lp_shares"`
	Price0Cumulative string               `json:"price0_cumulative_last"`
	Price1Cumulative string               `json:"price1_cumulative_last"`
	BlockTimeLast    int64                `json:"block_time_last"`
}

// ConfigResponse is the opaque Config query payload.
type ConfigResponse struct {
	BlockTimeLast int64           `json:"block_time_last"`
	Params        PoolParams      `json:"params"`
	AmpGamma      AmpGamma        `json:"amp_gamma"`
	PriceState    PriceState      `json:"price_state"`
	FeeShare      *FeeShareConfig `json:"fee_share,omitempty"`
	Owner         string          `json:"owner,omitempty"`
}
