/*

Price-state maintenance: EMA oracle update and the repeg attempt that moves
price_scale toward the oracle whenever doing so costs less than the configured
profit threshold.

*/

package pool

import (
	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/pclmath"
	"github.com/astrodex-labs/pcl-core/internal/types"
)

var (
	decOne = sdkmath.LegacyOneDec()
	decTwo = sdkmath.LegacyNewDec(2)
)

// updateOracle folds the previous last_prices into the EMA with weight
// 0.5^(dt/ma_half_time), then installs the new instantaneous price, clamped
// to at most twice the previous one to blunt single-trade manipulation.
func (p *Pool) updateOracle(now int64, lastReal sdkmath.LegacyDec) error {
	elapsed := now - p.Price.LastPriceUpdate
	if elapsed > 0 {
		power := sdkmath.LegacyNewDec(elapsed).QuoInt64(p.Params.MaHalfTime)
		alpha, err := pclmath.HalfPow(power)
		if err != nil {
			return err
		}
		p.Price.PriceOracle = p.Price.PriceOracle.Mul(alpha).
			Add(p.Price.LastPrices.Mul(decOne.Sub(alpha)))
		p.Price.LastPriceUpdate = now
	}
	if lastReal.IsPositive() {
		cap := p.Price.LastPrices.Mul(decTwo)
		if lastReal.GT(cap) {
			lastReal = cap
		}
		p.Price.LastPrices = lastReal
	}
	return nil
}

// updatePrice recomputes the invariant and profit counters and attempts a
// repeg. Called after every trade, imbalanced provide/withdraw and orderbook
// sync; the caller passes the instantaneous price implied by the operation.
func (p *Pool) updatePrice(now int64, lastReal sdkmath.LegacyDec) error {
	if !p.TotalLp.IsPositive() {
		return types.ErrEmptyPool
	}
	if err := p.updateOracle(now, lastReal); err != nil {
		return err
	}

	amp, gamma := p.AmpGamma.Values(now)
	xp, err := p.internalBalances(p.Price.PriceScale)
	if err != nil {
		return err
	}
	d, err := pclmath.NewtonD(xp[0], xp[1], amp, gamma)
	if err != nil {
		return err
	}
	xcp, err := xcpValue(d, p.Price.PriceScale)
	if err != nil {
		return err
	}
	virtualPrice := xcp.Quo(p.totalLpDec())
	if p.Price.XcpProfitReal.IsPositive() {
		p.Price.XcpProfit = p.Price.XcpProfit.Mul(virtualPrice).Quo(p.Price.XcpProfitReal)
	}
	p.Price.XcpProfitReal = virtualPrice
	p.Price.D = d

	// repeg attempt: only when the oracle drifted far enough from the scale
	norm := p.Price.PriceOracle.Quo(p.Price.PriceScale).Sub(decOne).Abs()
	if norm.LT(p.Params.MinPriceScaleDelta) {
		return nil
	}
	step := norm.Quo(decTwo)
	scaleNew := p.Price.PriceScale.Mul(norm.Sub(step)).
		Add(step.Mul(p.Price.PriceOracle)).Quo(norm)

	xpNew, err := p.internalBalances(scaleNew)
	if err != nil {
		return err
	}
	dNew, err := pclmath.NewtonD(xpNew[0], xpNew[1], amp, gamma)
	if err != nil {
		return err
	}
	xcpNew, err := xcpValue(dNew, scaleNew)
	if err != nil {
		return err
	}
	vpCandidate := xcpNew.Quo(p.totalLpDec())
	if vpCandidate.LT(virtualPrice.Sub(p.Params.RepegProfitThreshold)) {
		p.Price.NotAdjusted = true
		return nil
	}
	p.Price.PriceScale = scaleNew
	p.Price.D = dNew
	p.Price.XcpProfitReal = vpCandidate
	p.Price.NotAdjusted = false
	return nil
}
