/*

Pool state for the concentrated-liquidity pair.

The Pool struct is a plain value owned by the Engine; every operation works on
a deep copy and the Engine swaps the copy in only when the whole transition
succeeded, so a failed call can never leave partial state behind.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/twap"
	"github.com/astrodex-labs/pcl-core/internal/types"
	"github.com/astrodex-labs/pcl-core/internal/utils"
)

// LpPrecision is the decimal exponent of the LP share token.
const LpPrecision = 6

// Pool bundles immutable pair configuration with the mutable curve state.
type Pool struct {
	Pair     types.PairInfo
	Params   types.PoolParams
	AmpGamma types.AmpGamma
	FeeShare *types.FeeShareConfig
	Owner    string
	// LockAddress receives the permanently locked minimum liquidity.
	LockAddress string
	Precisions  [types.PoolAssetsNum]uint8

	Balances [types.PoolAssetsNum]sdkmath.Int
	TotalLp  sdkmath.Int
	Price    types.PriceState

	Accumulator  *twap.Accumulator
	Observations *twap.Ring

	// LastRampStart gates how often a new ramp may begin.
	LastRampStart int64
}

// InitParams is everything needed to instantiate a pool.
type InitParams struct {
	AssetInfos  [types.PoolAssetsNum]types.AssetInfo
	LpDenom     string
	Factory     string
	Owner       string
	LockAddress string
	Params      types.PoolParams
	Amp         sdkmath.LegacyDec
	Gamma       sdkmath.LegacyDec
	FeeShare    *types.FeeShareConfig
	Precisions  types.PrecisionRegistry
	// Observation ring sizing.
	ObservationCapacity int
	MinTradesToAvg      int
}

// NewPool validates parameters and returns an empty pool.
func NewPool(p InitParams, now int64) (*Pool, error) {
	if p.AssetInfos[0].Equal(p.AssetInfos[1]) {
		return nil, fmt.Errorf("%w: pool assets must differ", types.ErrInvalidAsset)
	}
	if err := p.Params.Validate(); err != nil {
		return nil, err
	}
	if err := types.ValidateAmpGamma(p.Amp, p.Gamma); err != nil {
		return nil, err
	}
	if p.FeeShare != nil {
		if err := p.FeeShare.Validate(); err != nil {
			return nil, err
		}
	}
	var precisions [types.PoolAssetsNum]uint8
	for i, info := range p.AssetInfos {
		prec, err := p.Precisions.Precision(info)
		if err != nil {
			return nil, err
		}
		precisions[i] = prec
	}
	ring, err := twap.NewRing(p.ObservationCapacity, p.MinTradesToAvg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidPoolParams, err)
	}

	pool := &Pool{
		Pair: types.PairInfo{
			AssetInfos: p.AssetInfos,
			LpDenom:    p.LpDenom,
			PairType:   "concentrated",
			Factory:    p.Factory,
		},
		Params:      p.Params,
		Owner:       p.Owner,
		LockAddress: p.LockAddress,
		FeeShare:    p.FeeShare,
		Precisions:  precisions,
		AmpGamma: types.AmpGamma{
			InitialAmp: p.Amp, InitialGamma: p.Gamma,
			FutureAmp: p.Amp, FutureGamma: p.Gamma,
			InitialTime: now, FutureTime: now,
		},
		Balances: [types.PoolAssetsNum]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()},
		TotalLp:  sdkmath.ZeroInt(),
		Price: types.PriceState{
			PriceScale:      p.Params.PriceScale,
			LastPrices:      p.Params.PriceScale,
			PriceOracle:     p.Params.PriceScale,
			LastPriceUpdate: now,
			XcpProfit:       sdkmath.LegacyOneDec(),
			XcpProfitReal:   sdkmath.LegacyZeroDec(),
			D:               sdkmath.LegacyZeroDec(),
		},
		Accumulator:  &twap.Accumulator{BlockTimeLast: now},
		Observations: ring,
	}
	return pool, nil
}

// Clone deep-copies the pool for a tentative transition.
func (p *Pool) Clone() *Pool {
	c := *p
	if p.FeeShare != nil {
		fs := *p.FeeShare
		c.FeeShare = &fs
	}
	c.Accumulator = p.Accumulator.Clone()
	c.Observations = p.Observations.Clone()
	return &c
}

// assetIndex resolves an asset info into its pool slot.
func (p *Pool) assetIndex(info types.AssetInfo) (int, error) {
	for i, ai := range p.Pair.AssetInfos {
		if ai.Equal(info) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", types.ErrAssetMismatch, info)
}

// internalBalances lifts the native balances into internal decimals, the
// quote side scaled by the given price scale.
func (p *Pool) internalBalances(scale sdkmath.LegacyDec) ([types.PoolAssetsNum]sdkmath.LegacyDec, error) {
	var xp [types.PoolAssetsNum]sdkmath.LegacyDec
	for i := range p.Balances {
		v, err := utils.ToInternal(p.Balances[i], p.Precisions[i])
		if err != nil {
			return xp, err
		}
		xp[i] = v
	}
	xp[1] = xp[1].Mul(scale)
	return xp, nil
}

// totalLpDec is the LP supply in LP-token decimals.
func (p *Pool) totalLpDec() sdkmath.LegacyDec {
	return sdkmath.LegacyNewDecFromIntWithPrec(p.TotalLp, LpPrecision)
}

// xcpValue is the constant-product yardstick at invariant d and the given
// price scale: the geometric mean of the ideal balanced holdings
// [d/2, d/(2*scale)], which works out to d / (2*sqrt(scale)). Measuring value
// through d makes the repeg profit comparison sensitive to the scale change.
func xcpValue(d, scale sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	sqrtScale, err := scale.ApproxSqrt()
	if err != nil {
		return sdkmath.LegacyDec{}, types.WrapNotConverging("price scale sqrt", types.ErrNotConverging)
	}
	return d.Quo(sqrtScale.MulInt64(2)), nil
}

// Info returns the pair metadata.
func (p *Pool) Info() types.PairInfo { return p.Pair }

// PoolResponse reports current balances and supply.
func (p *Pool) PoolResponse() types.PoolResponse {
	var assets [types.PoolAssetsNum]types.Asset
	for i := range assets {
		assets[i] = types.NewAsset(p.Pair.AssetInfos[i], p.Balances[i])
	}
	return types.PoolResponse{Assets: assets, TotalLpShares: p.TotalLp}
}

// Share returns the underlying assets redeemable for lpAmount.
func (p *Pool) Share(lpAmount sdkmath.Int) ([types.PoolAssetsNum]types.Asset, error) {
	var out [types.PoolAssetsNum]types.Asset
	if !p.TotalLp.IsPositive() {
		return out, types.ErrEmptyPool
	}
	if lpAmount.IsNegative() || lpAmount.GT(p.TotalLp) {
		return out, types.ErrInsufficientLpTokens
	}
	for i := range out {
		amount := p.Balances[i].Mul(lpAmount).Quo(p.TotalLp)
		out[i] = types.NewAsset(p.Pair.AssetInfos[i], amount)
	}
	return out, nil
}

// CumulativePrices reports the TWAP accumulators.
func (p *Pool) CumulativePrices() types.CumulativePricesResponse {
	pr := p.PoolResponse()
	return types.CumulativePricesResponse{
		Assets:           pr.Assets,
		TotalLpShares:    pr.TotalLpShares,
		Price0Cumulative: p.Accumulator.Price0Cumulative.String(),
		Price1Cumulative: p.Accumulator.Price1Cumulative.String(),
		BlockTimeLast:    p.Accumulator.BlockTimeLast,
	}
}

// ConfigResponse reports the opaque pool configuration.
func (p *Pool) ConfigResponse() types.ConfigResponse {
	return types.ConfigResponse{
		BlockTimeLast: p.Accumulator.BlockTimeLast,
		Params:        p.Params,
		AmpGamma:      p.AmpGamma,
		PriceState:    p.Price,
		FeeShare:      p.FeeShare,
		Owner:         p.Owner,
	}
}
