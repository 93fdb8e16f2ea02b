/*

Orderbook mirroring state: the pool deposits part of its liquidity as a
ladder of limit orders on an external DEX and periodically reconciles the
fills back into the curve.

*/

package orderbook

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

// MinTradeSize is the smallest internal-unit balance diff treated as a real
// fill; anything below is rounding noise from 18-decimal tokens.
var MinTradeSize = sdkmath.LegacyNewDecWithPrec(1, 12) // 1e-12

// Params configures the order ladder.
type Params struct {
	OrdersNumber       int               `json:"orders_number"`
	LiquidityPercent   sdkmath.LegacyDec `json:"liquidity_percent"`
	MinAsset0OrderSize sdkmath.Int       `json:"min_asset0_order_size"`
	MinAsset1OrderSize sdkmath.Int       `json:"min_asset1_order_size"`
	AvgPriceAdjustment sdkmath.LegacyDec `json:"avg_price_adjustment"`
	// Executor, when set, is the only identity allowed to trigger a sync.
	Executor string `json:"executor,omitempty"`
	Enabled  bool   `json:"enabled"`
}

func (p Params) Validate() error {
	if p.OrdersNumber <= 0 {
		return fmt.Errorf("%w: orders_number must be positive", types.ErrInvalidPoolParams)
	}
	if !p.LiquidityPercent.IsPositive() || p.LiquidityPercent.GT(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("%w: liquidity_percent must be in (0, 1]", types.ErrInvalidPoolParams)
	}
	if p.MinAsset0OrderSize.IsNegative() || p.MinAsset1OrderSize.IsNegative() {
		return fmt.Errorf("%w: minimum order sizes must be non-negative", types.ErrInvalidPoolParams)
	}
	if p.AvgPriceAdjustment.IsNegative() || p.AvgPriceAdjustment.GTE(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("%w: avg_price_adjustment must be in [0, 1)", types.ErrInvalidPoolParams)
	}
	return nil
}

// State is the controller's persistent snapshot between syncs.
type State struct {
	Params        Params                           `json:"params"`
	LastBalances  [types.PoolAssetsNum]sdkmath.Int `json:"last_balances"`
	NeedReconcile bool                             `json:"need_reconcile"`
}

func (s State) minOrderSize(sellIdx int) sdkmath.Int {
	if sellIdx == 0 {
		return s.Params.MinAsset0OrderSize
	}
	return s.Params.MinAsset1OrderSize
}
