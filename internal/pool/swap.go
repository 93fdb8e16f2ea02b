/*

Swap arithmetic: offer -> return computation on the curve, oracle-referenced
spread, dynamic fee and its three-way split, and the slippage assertions.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/pclmath"
	"github.com/astrodex-labs/pcl-core/internal/types"
	"github.com/astrodex-labs/pcl-core/internal/utils"
)

// DefaultMaxSpread applies when a swap carries no explicit limit.
var DefaultMaxSpread = sdkmath.LegacyNewDecWithPrec(5, 3) // 0.005

// SwapRequest describes one inbound swap.
type SwapRequest struct {
	Sender      string
	OfferAsset  types.Asset
	BeliefPrice *sdkmath.LegacyDec
	MaxSpread   *sdkmath.LegacyDec
	To          string
}

// SwapResult is the committed outcome of a swap.
type SwapResult struct {
	TradeID          string
	ReturnAsset      types.Asset
	SpreadAmount     sdkmath.Int
	CommissionAmount sdkmath.Int
	MakerFeeAmount   sdkmath.Int
	ShareFeeAmount   sdkmath.Int
	Intents          []types.TransferIntent
}

// swapComputation carries the internal-unit intermediates of one swap.
type swapComputation struct {
	offerIdx, askIdx int
	offerAmount      sdkmath.LegacyDec // internal, unscaled
	dyRaw            sdkmath.LegacyDec // internal ask units before fee
	spread           sdkmath.LegacyDec
	totalFee         sdkmath.LegacyDec
	returnAfterFee   sdkmath.LegacyDec
	lastReal         sdkmath.LegacyDec // implied price of asset1 in asset0
	xpAfter          [types.PoolAssetsNum]sdkmath.LegacyDec
}

// computeSwap walks the curve for an offer on one side and returns all
// internal-unit intermediates. It does not mutate the pool.
func (p *Pool) computeSwap(now int64, offerIdx int, offerAmount sdkmath.LegacyDec) (swapComputation, error) {
	comp := swapComputation{offerIdx: offerIdx, askIdx: 1 - offerIdx, offerAmount: offerAmount}
	if !offerAmount.IsPositive() {
		return comp, types.ErrSwapAmountZero
	}
	if !p.Balances[0].IsPositive() || !p.Balances[1].IsPositive() {
		return comp, types.ErrEmptyPool
	}

	amp, gamma := p.AmpGamma.Values(now)
	xp, err := p.internalBalances(p.Price.PriceScale)
	if err != nil {
		return comp, err
	}
	d, err := pclmath.NewtonD(xp[0], xp[1], amp, gamma)
	if err != nil {
		return comp, types.WrapNotConverging("swap", err)
	}

	offerScaled := offerAmount
	if offerIdx == 1 {
		offerScaled = offerScaled.Mul(p.Price.PriceScale)
	}
	xp[offerIdx] = xp[offerIdx].Add(offerScaled)

	newY, err := pclmath.NewtonY(xp[offerIdx], amp, gamma, d)
	if err != nil {
		return comp, types.WrapNotConverging("swap", err)
	}
	dyScaled := xp[comp.askIdx].Sub(newY)
	if !dyScaled.IsPositive() {
		return comp, types.ErrInsufficientPoolBalance
	}
	comp.xpAfter = xp
	comp.xpAfter[comp.askIdx] = newY

	comp.dyRaw = dyScaled
	if comp.askIdx == 1 {
		comp.dyRaw = comp.dyRaw.Quo(p.Price.PriceScale)
	}

	// spread against the oracle price, not the curve price, so clients can
	// bound slippage independently of curve curvature
	var ideal sdkmath.LegacyDec
	if offerIdx == 0 {
		ideal = offerAmount.Quo(p.Price.PriceOracle)
	} else {
		ideal = offerAmount.Mul(p.Price.PriceOracle)
	}
	comp.spread = sdkmath.LegacyMaxDec(ideal.Sub(comp.dyRaw), sdkmath.LegacyZeroDec())

	comp.totalFee = feeRate(p.Params, comp.xpAfter).Mul(comp.dyRaw)
	comp.returnAfterFee = comp.dyRaw.Sub(comp.totalFee)

	if offerIdx == 0 {
		comp.lastReal = offerAmount.Quo(comp.dyRaw)
	} else {
		comp.lastReal = comp.dyRaw.Quo(offerAmount)
	}
	return comp, nil
}

// assertMaxSpread enforces the client slippage window on internal units. The
// return is measured before commission so the fee never counts against the
// window.
func assertMaxSpread(beliefPrice, maxSpread *sdkmath.LegacyDec, offer, ret, spread sdkmath.LegacyDec) error {
	limit := DefaultMaxSpread
	if maxSpread != nil {
		limit = *maxSpread
	}
	if limit.GT(types.MaxAllowedSlippage) {
		return types.ErrAllowedSpreadAssertion
	}
	if beliefPrice != nil {
		if !beliefPrice.IsPositive() {
			return fmt.Errorf("%w: belief price must be positive", types.ErrInvalidPoolParams)
		}
		expected := offer.Quo(*beliefPrice)
		if ret.LT(expected.Mul(decOne.Sub(limit))) {
			return types.ErrMaxSpreadAssertion
		}
		return nil
	}
	total := ret.Add(spread)
	if total.IsPositive() && spread.Quo(total).GT(limit) {
		return types.ErrMaxSpreadAssertion
	}
	return nil
}

// applySwap executes a swap against this pool copy and returns the result
// with its outbound transfer intents.
func (p *Pool) applySwap(now int64, req SwapRequest, fees types.FeeInfo) (*SwapResult, error) {
	offerIdx, err := p.assetIndex(req.OfferAsset.Info)
	if err != nil {
		return nil, err
	}
	offerInternal, err := utils.ToInternal(req.OfferAsset.Amount, p.Precisions[offerIdx])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidAsset, err)
	}
	comp, err := p.computeSwap(now, offerIdx, offerInternal)
	if err != nil {
		return nil, err
	}

	split := splitFees(comp.totalFee, p.FeeShare, fees.MakerFeeRate, fees.FeeAddress != "")

	askIdx := comp.askIdx
	askPrec := p.Precisions[askIdx]
	returnAmount, err := utils.FromInternal(comp.returnAfterFee, askPrec)
	if err != nil {
		return nil, err
	}
	if !returnAmount.IsPositive() {
		return nil, fmt.Errorf("%w: computed return is zero", types.ErrSwapAmountZero)
	}
	if err := assertMaxSpread(req.BeliefPrice, req.MaxSpread, offerInternal, comp.dyRaw, comp.spread); err != nil {
		return nil, err
	}
	makerAmount, err := utils.FromInternal(split.MakerFee, askPrec)
	if err != nil {
		return nil, err
	}
	shareAmount, err := utils.FromInternal(split.ShareFee, askPrec)
	if err != nil {
		return nil, err
	}
	spreadAmount, err := utils.FromInternal(comp.spread, askPrec)
	if err != nil {
		return nil, err
	}
	commissionAmount, err := utils.FromInternal(comp.totalFee, askPrec)
	if err != nil {
		return nil, err
	}

	// cumulative prices advance with the price that was in effect before
	// this trade
	p.Accumulator.Accumulate(now, p.Price.LastPrices)
	if offerIdx == 0 {
		p.Observations.OnTrade(comp.offerAmount, comp.dyRaw, now)
	} else {
		p.Observations.OnTrade(comp.dyRaw, comp.offerAmount, now)
	}

	outflow := returnAmount.Add(makerAmount).Add(shareAmount)
	if outflow.GTE(p.Balances[askIdx]) {
		return nil, types.ErrInsufficientPoolBalance
	}
	p.Balances[offerIdx] = p.Balances[offerIdx].Add(req.OfferAsset.Amount)
	p.Balances[askIdx] = p.Balances[askIdx].Sub(outflow)

	if err := p.updatePrice(now, comp.lastReal); err != nil {
		return nil, err
	}

	askInfo := p.Pair.AssetInfos[askIdx]
	recipient := req.To
	if recipient == "" {
		recipient = req.Sender
	}
	result := &SwapResult{
		ReturnAsset:      types.NewAsset(askInfo, returnAmount),
		SpreadAmount:     spreadAmount,
		CommissionAmount: commissionAmount,
		MakerFeeAmount:   makerAmount,
		ShareFeeAmount:   shareAmount,
		Intents: []types.TransferIntent{
			{Recipient: recipient, Coin: types.NewAsset(askInfo, returnAmount).Coin(), Purpose: "return"},
		},
	}
	if makerAmount.IsPositive() {
		result.Intents = append(result.Intents, types.TransferIntent{
			Recipient: fees.FeeAddress,
			Coin:      types.NewAsset(askInfo, makerAmount).Coin(),
			Purpose:   "maker_fee",
		})
	}
	if shareAmount.IsPositive() && p.FeeShare != nil {
		result.Intents = append(result.Intents, types.TransferIntent{
			Recipient: p.FeeShare.Recipient,
			Coin:      types.NewAsset(askInfo, shareAmount).Coin(),
			Purpose:   "share_fee",
		})
	}
	return result, nil
}

// simulate runs the forward computation without mutating state.
func (p *Pool) simulate(now int64, offer types.Asset) (types.SimulationResponse, error) {
	offerIdx, err := p.assetIndex(offer.Info)
	if err != nil {
		return types.SimulationResponse{}, err
	}
	offerInternal, err := utils.ToInternal(offer.Amount, p.Precisions[offerIdx])
	if err != nil {
		return types.SimulationResponse{}, err
	}
	comp, err := p.computeSwap(now, offerIdx, offerInternal)
	if err != nil {
		return types.SimulationResponse{}, err
	}
	askPrec := p.Precisions[comp.askIdx]
	ret, err := utils.FromInternal(comp.returnAfterFee, askPrec)
	if err != nil {
		return types.SimulationResponse{}, err
	}
	spread, err := utils.FromInternal(comp.spread, askPrec)
	if err != nil {
		return types.SimulationResponse{}, err
	}
	commission, err := utils.FromInternal(comp.totalFee, askPrec)
	if err != nil {
		return types.SimulationResponse{}, err
	}
	return types.SimulationResponse{
		ReturnAmount:     ret,
		SpreadAmount:     spread,
		CommissionAmount: commission,
	}, nil
}

// reverseSimulate estimates the offer for a target ask amount. The fee is
// pre-inflated with the worst-case out_fee, so the quote errs in the pool's
// favor on near-balanced pools.
func (p *Pool) reverseSimulate(now int64, ask types.Asset) (types.ReverseSimulationResponse, error) {
	askIdx, err := p.assetIndex(ask.Info)
	if err != nil {
		return types.ReverseSimulationResponse{}, err
	}
	offerIdx := 1 - askIdx
	if !ask.Amount.IsPositive() {
		return types.ReverseSimulationResponse{}, types.ErrSwapAmountZero
	}
	if !p.Balances[0].IsPositive() || !p.Balances[1].IsPositive() {
		return types.ReverseSimulationResponse{}, types.ErrEmptyPool
	}
	askInternal, err := utils.ToInternal(ask.Amount, p.Precisions[askIdx])
	if err != nil {
		return types.ReverseSimulationResponse{}, err
	}

	dyRaw := askInternal.Quo(decOne.Sub(p.Params.OutFee))
	commission := dyRaw.Sub(askInternal)

	amp, gamma := p.AmpGamma.Values(now)
	xp, err := p.internalBalances(p.Price.PriceScale)
	if err != nil {
		return types.ReverseSimulationResponse{}, err
	}
	d, err := pclmath.NewtonD(xp[0], xp[1], amp, gamma)
	if err != nil {
		return types.ReverseSimulationResponse{}, types.WrapNotConverging("reverse simulation", err)
	}
	dyScaled := dyRaw
	if askIdx == 1 {
		dyScaled = dyScaled.Mul(p.Price.PriceScale)
	}
	if dyScaled.GTE(xp[askIdx]) {
		return types.ReverseSimulationResponse{}, types.ErrInsufficientPoolBalance
	}
	askAfter := xp[askIdx].Sub(dyScaled)
	newOffer, err := pclmath.NewtonY(askAfter, amp, gamma, d)
	if err != nil {
		return types.ReverseSimulationResponse{}, types.WrapNotConverging("reverse simulation", err)
	}
	offerScaled := newOffer.Sub(xp[offerIdx])
	if !offerScaled.IsPositive() {
		return types.ReverseSimulationResponse{}, types.ErrInsufficientPoolBalance
	}
	offerInternal := offerScaled
	if offerIdx == 1 {
		offerInternal = offerInternal.Quo(p.Price.PriceScale)
	}

	var ideal sdkmath.LegacyDec
	if offerIdx == 0 {
		ideal = offerInternal.Quo(p.Price.PriceOracle)
	} else {
		ideal = offerInternal.Mul(p.Price.PriceOracle)
	}
	spread := sdkmath.LegacyMaxDec(ideal.Sub(dyRaw), sdkmath.LegacyZeroDec())

	offerAmount, err := utils.FromInternalCeil(offerInternal, p.Precisions[offerIdx])
	if err != nil {
		return types.ReverseSimulationResponse{}, err
	}
	spreadAmount, err := utils.FromInternal(spread, p.Precisions[askIdx])
	if err != nil {
		return types.ReverseSimulationResponse{}, err
	}
	commissionAmount, err := utils.FromInternal(commission, p.Precisions[askIdx])
	if err != nil {
		return types.ReverseSimulationResponse{}, err
	}
	return types.ReverseSimulationResponse{
		OfferAmount:      offerAmount,
		SpreadAmount:     spreadAmount,
		CommissionAmount: commissionAmount,
	}, nil
}
