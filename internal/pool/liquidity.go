/*

Liquidity provision and withdrawal: D-proportional share minting with the
minimum-liquidity lock, imbalanced-deposit fee, slippage tolerance, and both
balanced and imbalanced withdrawal paths.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/pclmath"
	"github.com/astrodex-labs/pcl-core/internal/types"
	"github.com/astrodex-labs/pcl-core/internal/utils"
)

// DefaultSlippageTolerance applies when a provide carries no explicit one.
var DefaultSlippageTolerance = sdkmath.LegacyNewDecWithPrec(2, 2) // 0.02

// ProvideRequest describes one liquidity deposit.
type ProvideRequest struct {
	Sender            string
	Assets            []types.Asset
	SlippageTolerance *sdkmath.LegacyDec
	MinLpToReceive    *sdkmath.Int
	Receiver          string
}

// ProvideResult is the committed outcome of a provide.
type ProvideResult struct {
	TradeID        string
	MintedLpAmount sdkmath.Int
	LockedLpAmount sdkmath.Int
	Intents        []types.TransferIntent
}

// WithdrawRequest describes one withdrawal. When ImbalancedAssets is set the
// caller names exact amounts to receive and surplus LP tokens are refunded;
// otherwise the burn is pro-rata.
type WithdrawRequest struct {
	Sender             string
	LpAmount           sdkmath.Int
	MinAssetsToReceive []types.Asset
	ImbalancedAssets   []types.Asset
}

// WithdrawResult is the committed outcome of a withdraw.
type WithdrawResult struct {
	TradeID          string
	RefundedAssets   [types.PoolAssetsNum]types.Asset
	BurnedLpAmount   sdkmath.Int
	RefundedLpAmount sdkmath.Int
	Intents          []types.TransferIntent
}

// depositAmounts resolves the request assets into per-slot native amounts.
func (p *Pool) depositAmounts(assets []types.Asset) ([types.PoolAssetsNum]sdkmath.Int, error) {
	amounts := [types.PoolAssetsNum]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	if len(assets) == 0 || len(assets) > types.PoolAssetsNum {
		return amounts, fmt.Errorf("%w: expected 1 or 2 assets, got %d", types.ErrInvalidAsset, len(assets))
	}
	seen := [types.PoolAssetsNum]bool{}
	for _, a := range assets {
		idx, err := p.assetIndex(a.Info)
		if err != nil {
			return amounts, err
		}
		if seen[idx] {
			return amounts, fmt.Errorf("%w: duplicate asset %s", types.ErrInvalidAsset, a.Info)
		}
		if a.Amount.IsNegative() {
			return amounts, fmt.Errorf("%w: negative amount for %s", types.ErrInvalidAsset, a.Info)
		}
		seen[idx] = true
		amounts[idx] = a.Amount
	}
	return amounts, nil
}

// applyProvide deposits liquidity into this pool copy.
func (p *Pool) applyProvide(now int64, req ProvideRequest) (*ProvideResult, error) {
	amounts, err := p.depositAmounts(req.Assets)
	if err != nil {
		return nil, err
	}
	if !amounts[0].IsPositive() && !amounts[1].IsPositive() {
		return nil, fmt.Errorf("%w: provide requires a positive deposit", types.ErrInvalidAsset)
	}
	tolerance := DefaultSlippageTolerance
	if req.SlippageTolerance != nil {
		tolerance = *req.SlippageTolerance
	}
	if tolerance.GT(types.MaxAllowedSlippage) {
		return nil, types.ErrAllowedSpreadAssertion
	}

	amp, gamma := p.AmpGamma.Values(now)
	scale := p.Price.PriceScale

	var deposits [types.PoolAssetsNum]sdkmath.LegacyDec
	for i := range amounts {
		deposits[i], err = utils.ToInternal(amounts[i], p.Precisions[i])
		if err != nil {
			return nil, err
		}
	}
	depositsScaled := deposits
	depositsScaled[1] = depositsScaled[1].Mul(scale)

	firstProvide := !p.TotalLp.IsPositive()
	if firstProvide && (!amounts[0].IsPositive() || !amounts[1].IsPositive()) {
		return nil, fmt.Errorf("%w: initial provide requires both assets", types.ErrInvalidAsset)
	}

	xpBefore, err := p.internalBalances(scale)
	if err != nil {
		return nil, err
	}
	newBalances := p.Balances
	for i := range newBalances {
		newBalances[i] = newBalances[i].Add(amounts[i])
	}
	xpAfter := [types.PoolAssetsNum]sdkmath.LegacyDec{
		xpBefore[0].Add(depositsScaled[0]),
		xpBefore[1].Add(depositsScaled[1]),
	}
	dAfter, err := pclmath.NewtonD(xpAfter[0], xpAfter[1], amp, gamma)
	if err != nil {
		return nil, types.WrapNotConverging("provide", err)
	}

	var mintedDec sdkmath.LegacyDec
	if firstProvide {
		mintedDec = dAfter
	} else {
		dBefore, err := pclmath.NewtonD(xpBefore[0], xpBefore[1], amp, gamma)
		if err != nil {
			return nil, types.WrapNotConverging("provide", err)
		}
		mintedDec = p.totalLpDec().Mul(dAfter.Quo(dBefore).Sub(decOne))
	}

	// imbalanced deposits pay the dynamic fee on the skewed half, taken by
	// reducing the minted shares
	depositSum := depositsScaled[0].Add(depositsScaled[1])
	if depositSum.IsPositive() {
		avg := depositSum.Quo(decTwo)
		skew := depositsScaled[0].Sub(avg).Abs()
		if skew.IsPositive() {
			feeFrac := feeRate(p.Params, xpAfter).Mul(skew).Quo(depositSum)
			mintedDec = mintedDec.Mul(decOne.Sub(feeFrac))
		}
	}

	// single-sided deposits have no balanced-value yardstick, so the slippage
	// check only applies when both legs are present
	if !firstProvide && p.Price.XcpProfitReal.IsPositive() &&
		depositsScaled[0].IsPositive() && depositsScaled[1].IsPositive() {
		gmDeposit, err := pclmath.GeometricMean(depositsScaled[0], depositsScaled[1])
		if err != nil {
			return nil, err
		}
		sqrtScale, err := scale.ApproxSqrt()
		if err != nil {
			return nil, types.WrapNotConverging("price scale sqrt", types.ErrNotConverging)
		}
		ideal := gmDeposit.Quo(sqrtScale).Quo(p.Price.XcpProfitReal)
		if mintedDec.LT(ideal.Mul(decOne.Sub(tolerance))) {
			return nil, types.ErrSlippageTolerance
		}
	}

	minted, err := utils.FromInternal(mintedDec, LpPrecision)
	if err != nil {
		return nil, err
	}
	locked := sdkmath.ZeroInt()
	if firstProvide {
		if minted.LTE(types.MinimumLiquidity) {
			return nil, types.ErrMinimumLiquidityAmount
		}
		locked = types.MinimumLiquidity
		minted = minted.Sub(locked)
	}
	if !minted.IsPositive() {
		return nil, types.ErrMinimumLiquidityAmount
	}
	if req.MinLpToReceive != nil && minted.LT(*req.MinLpToReceive) {
		return nil, types.ErrMinReceiveAssertion
	}

	p.Accumulator.Accumulate(now, p.Price.LastPrices)
	p.Balances = newBalances
	p.TotalLp = p.TotalLp.Add(minted).Add(locked)

	if firstProvide {
		xcp, err := xcpValue(dAfter, scale)
		if err != nil {
			return nil, err
		}
		p.Price.D = dAfter
		p.Price.XcpProfitReal = xcp.Quo(p.totalLpDec())
	} else if err := p.updatePrice(now, sdkmath.LegacyZeroDec()); err != nil {
		return nil, err
	}

	receiver := req.Receiver
	if receiver == "" {
		receiver = req.Sender
	}
	lpInfo := types.NativeAsset(p.Pair.LpDenom)
	result := &ProvideResult{
		MintedLpAmount: minted,
		LockedLpAmount: locked,
		Intents: []types.TransferIntent{
			{Recipient: receiver, Coin: types.NewAsset(lpInfo, minted).Coin(), Purpose: "lp_mint"},
		},
	}
	if locked.IsPositive() {
		result.Intents = append(result.Intents, types.TransferIntent{
			Recipient: p.LockAddress,
			Coin:      types.NewAsset(lpInfo, locked).Coin(),
			Purpose:   "lp_lock",
		})
	}
	return result, nil
}

// applyWithdraw burns LP shares from this pool copy.
func (p *Pool) applyWithdraw(now int64, req WithdrawRequest) (*WithdrawResult, error) {
	if !p.TotalLp.IsPositive() {
		return nil, types.ErrEmptyPool
	}
	if !req.LpAmount.IsPositive() || req.LpAmount.GT(p.TotalLp) {
		return nil, types.ErrInsufficientLpTokens
	}

	var (
		amounts  [types.PoolAssetsNum]sdkmath.Int
		burned   = req.LpAmount
		refunded = sdkmath.ZeroInt()
		err      error
	)
	if len(req.ImbalancedAssets) == 0 {
		for i := range amounts {
			amounts[i] = p.Balances[i].Mul(req.LpAmount).Quo(p.TotalLp)
		}
	} else {
		amounts, burned, err = p.imbalancedWithdrawAmounts(req.ImbalancedAssets)
		if err != nil {
			return nil, err
		}
		if burned.GT(req.LpAmount) {
			return nil, types.ErrInsufficientLpTokens
		}
		refunded = req.LpAmount.Sub(burned)
	}

	for _, min := range req.MinAssetsToReceive {
		idx, err := p.assetIndex(min.Info)
		if err != nil {
			return nil, err
		}
		if amounts[idx].LT(min.Amount) {
			return nil, types.ErrMinReceiveAssertion
		}
	}
	for i := range amounts {
		if amounts[i].GTE(p.Balances[i]) {
			return nil, types.ErrInsufficientPoolBalance
		}
	}

	p.Accumulator.Accumulate(now, p.Price.LastPrices)
	for i := range amounts {
		p.Balances[i] = p.Balances[i].Sub(amounts[i])
	}
	p.TotalLp = p.TotalLp.Sub(burned)

	// a pro-rata burn keeps the curve shape, so the price state is untouched;
	// an imbalanced one moves the spot price and must run the repeg path
	if len(req.ImbalancedAssets) != 0 {
		if err := p.updatePrice(now, sdkmath.LegacyZeroDec()); err != nil {
			return nil, err
		}
	}

	result := &WithdrawResult{
		BurnedLpAmount:   burned,
		RefundedLpAmount: refunded,
	}
	for i := range amounts {
		asset := types.NewAsset(p.Pair.AssetInfos[i], amounts[i])
		result.RefundedAssets[i] = asset
		if amounts[i].IsPositive() {
			result.Intents = append(result.Intents, types.TransferIntent{
				Recipient: req.Sender,
				Coin:      asset.Coin(),
				Purpose:   "withdraw",
			})
		}
	}
	if refunded.IsPositive() {
		result.Intents = append(result.Intents, types.TransferIntent{
			Recipient: req.Sender,
			Coin:      types.NewAsset(types.NativeAsset(p.Pair.LpDenom), refunded).Coin(),
			Purpose:   "refund",
		})
	}
	return result, nil
}

// imbalancedWithdrawAmounts prices an exact-output withdrawal: the LP cost is
// the requested share of the pool's internal value, rounded against the caller.
func (p *Pool) imbalancedWithdrawAmounts(requested []types.Asset) ([types.PoolAssetsNum]sdkmath.Int, sdkmath.Int, error) {
	amounts, err := p.depositAmounts(requested)
	if err != nil {
		return amounts, sdkmath.Int{}, err
	}
	if !amounts[0].IsPositive() && !amounts[1].IsPositive() {
		return amounts, sdkmath.Int{}, fmt.Errorf("%w: imbalanced withdraw requires a positive amount", types.ErrInvalidAsset)
	}

	xp, err := p.internalBalances(p.Price.PriceScale)
	if err != nil {
		return amounts, sdkmath.Int{}, err
	}
	var reqScaled [types.PoolAssetsNum]sdkmath.LegacyDec
	for i := range amounts {
		reqScaled[i], err = utils.ToInternal(amounts[i], p.Precisions[i])
		if err != nil {
			return amounts, sdkmath.Int{}, err
		}
	}
	reqScaled[1] = reqScaled[1].Mul(p.Price.PriceScale)

	poolSum := xp[0].Add(xp[1])
	reqSum := reqScaled[0].Add(reqScaled[1])
	if reqSum.GTE(poolSum) {
		return amounts, sdkmath.Int{}, types.ErrInsufficientPoolBalance
	}
	lpNeededDec := p.totalLpDec().Mul(reqSum).Quo(poolSum)
	lpNeeded, err := utils.FromInternalCeil(lpNeededDec, LpPrecision)
	if err != nil {
		return amounts, sdkmath.Int{}, err
	}
	if !lpNeeded.IsPositive() {
		return amounts, sdkmath.Int{}, types.ErrInsufficientLpTokens
	}
	return amounts, lpNeeded, nil
}
