/*

Support for the orderbook controller: folding a cumulative off-book fill back
into the pool state, and walking the curve to price a replacement order ladder.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/pclmath"
	"github.com/astrodex-labs/pcl-core/internal/types"
	"github.com/astrodex-labs/pcl-core/internal/utils"
)

// SyncTrade is one cumulative trade reconstructed from an orderbook balance
// diff. OfferIdx is the side the pool received; amounts are internal units.
type SyncTrade struct {
	OfferIdx    int
	OfferAmount sdkmath.LegacyDec
	AskAmount   sdkmath.LegacyDec
}

// ApplySyncTrade installs the observed balances (which already reflect the
// off-book fills), charges the worst-case out_fee on the filled side, and runs
// the full post-trade pipeline: accumulators, observations, update_price.
// Returns the maker/share fee transfer intents.
func (p *Pool) ApplySyncTrade(now int64, observed [types.PoolAssetsNum]sdkmath.Int, t SyncTrade, fees types.FeeInfo) ([]types.TransferIntent, error) {
	if !t.OfferAmount.IsPositive() || !t.AskAmount.IsPositive() {
		return nil, fmt.Errorf("%w: sync trade legs must be positive", types.ErrInvalidAsset)
	}
	askIdx := 1 - t.OfferIdx

	// fills happened at ladder prices unknown to the pool, so the fee is the
	// worst case the curve would have charged
	totalFee := p.Params.OutFee.Mul(t.AskAmount)
	split := splitFees(totalFee, p.FeeShare, fees.MakerFeeRate, fees.FeeAddress != "")
	makerAmount, err := utils.FromInternal(split.MakerFee, p.Precisions[askIdx])
	if err != nil {
		return nil, err
	}
	shareAmount, err := utils.FromInternal(split.ShareFee, p.Precisions[askIdx])
	if err != nil {
		return nil, err
	}

	var base, quote sdkmath.LegacyDec
	if t.OfferIdx == 0 {
		base, quote = t.OfferAmount, t.AskAmount
	} else {
		base, quote = t.AskAmount, t.OfferAmount
	}
	lastReal := quote.Quo(base)

	p.Accumulator.Accumulate(now, p.Price.LastPrices)
	p.Observations.OnTrade(base, quote, now)

	p.Balances = observed
	outflow := makerAmount.Add(shareAmount)
	if outflow.GTE(p.Balances[askIdx]) {
		return nil, types.ErrInsufficientPoolBalance
	}
	p.Balances[askIdx] = p.Balances[askIdx].Sub(outflow)

	if err := p.updatePrice(now, lastReal); err != nil {
		return nil, err
	}

	askInfo := p.Pair.AssetInfos[askIdx]
	var intents []types.TransferIntent
	if makerAmount.IsPositive() {
		intents = append(intents, types.TransferIntent{
			Recipient: fees.FeeAddress,
			Coin:      types.NewAsset(askInfo, makerAmount).Coin(),
			Purpose:   "maker_fee",
		})
	}
	if shareAmount.IsPositive() && p.FeeShare != nil {
		intents = append(intents, types.TransferIntent{
			Recipient: p.FeeShare.Recipient,
			Coin:      types.NewAsset(askInfo, shareAmount).Coin(),
			Purpose:   "share_fee",
		})
	}
	return intents, nil
}

// InternalBalances exposes the internal-unit balances at the current price
// scale for read-only consumers.
func (p *Pool) InternalBalances() ([types.PoolAssetsNum]sdkmath.LegacyDec, error) {
	return p.internalBalances(p.Price.PriceScale)
}

// CurveReceive walks the curve selling ever larger cumulative amounts of the
// sell side and returns the cumulative internal amount received for each
// entry. Amounts are internal units of the respective asset.
func (p *Pool) CurveReceive(now int64, sellIdx int, cumulative []sdkmath.LegacyDec) ([]sdkmath.LegacyDec, error) {
	buyIdx := 1 - sellIdx
	amp, gamma := p.AmpGamma.Values(now)
	xp, err := p.internalBalances(p.Price.PriceScale)
	if err != nil {
		return nil, err
	}
	d, err := pclmath.NewtonD(xp[0], xp[1], amp, gamma)
	if err != nil {
		return nil, types.WrapNotConverging("curve walk", err)
	}

	out := make([]sdkmath.LegacyDec, len(cumulative))
	for i, c := range cumulative {
		if !c.IsPositive() {
			return nil, fmt.Errorf("%w: curve walk amounts must be positive", types.ErrInvalidAsset)
		}
		sold := c
		if sellIdx == 1 {
			sold = sold.Mul(p.Price.PriceScale)
		}
		y, err := pclmath.NewtonY(xp[sellIdx].Add(sold), amp, gamma, d)
		if err != nil {
			return nil, types.WrapNotConverging("curve walk", err)
		}
		recv := xp[buyIdx].Sub(y)
		if !recv.IsPositive() {
			return nil, types.ErrInsufficientPoolBalance
		}
		if buyIdx == 1 {
			recv = recv.Quo(p.Price.PriceScale)
		}
		out[i] = recv
	}
	return out, nil
}

// Update runs fn against a clone of the pool under the engine lock and swaps
// the clone in only when fn succeeds. The orderbook controller uses this to
// keep its multi-step sync atomic.
func (e *Engine) Update(fn func(p *Pool) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.pool.Clone()
	if err := fn(next); err != nil {
		return err
	}
	e.pool = next
	return nil
}
