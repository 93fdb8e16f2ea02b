package orderbook

import (
	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/pool"
	"github.com/astrodex-labs/pcl-core/internal/types"
	"github.com/astrodex-labs/pcl-core/internal/utils"
)

// Order is one limit order in the mirrored ladder: sell SellAsset, expect at
// least AskAsset back; Price is the implied quote-per-base price.
type Order struct {
	SellAsset types.Asset       `json:"sell_asset"`
	AskAsset  types.Asset       `json:"ask_asset"`
	Price     sdkmath.LegacyDec `json:"price"`
}

// buildLadder derives the replacement ladder from the pool's own curve. Each
// side commits liquidity_percent of its balance split evenly across
// orders_number orders; order i's price is the curve quote for the cumulative
// tranche, pushed out by i * avg_price_adjustment. A side whose per-order
// amount falls below its minimum is skipped.
func buildLadder(p *pool.Pool, now int64, st State) ([]Order, error) {
	var ladder []Order
	for sellIdx := 0; sellIdx < types.PoolAssetsNum; sellIdx++ {
		orders, err := buildSide(p, now, st, sellIdx)
		if err != nil {
			return nil, err
		}
		ladder = append(ladder, orders...)
	}
	return ladder, nil
}

func buildSide(p *pool.Pool, now int64, st State, sellIdx int) ([]Order, error) {
	buyIdx := 1 - sellIdx
	n := st.Params.OrdersNumber

	total := st.Params.LiquidityPercent.MulInt(p.Balances[sellIdx])
	perOrder := total.QuoInt64(int64(n)).TruncateInt()
	if perOrder.LT(st.minOrderSize(sellIdx)) || !perOrder.IsPositive() {
		return nil, nil
	}

	perInternal, err := utils.ToInternal(perOrder, p.Precisions[sellIdx])
	if err != nil {
		return nil, err
	}
	cumulative := make([]sdkmath.LegacyDec, n)
	for i := range cumulative {
		cumulative[i] = perInternal.MulInt64(int64(i + 1))
	}
	received, err := p.CurveReceive(now, sellIdx, cumulative)
	if err != nil {
		return nil, err
	}

	orders := make([]Order, 0, n)
	prev := sdkmath.LegacyZeroDec()
	for i := 0; i < n; i++ {
		tranche := received[i].Sub(prev)
		prev = received[i]

		// deeper orders sit further from the spot price
		adjust := sdkmath.LegacyOneDec().Add(st.Params.AvgPriceAdjustment.MulInt64(int64(i + 1)))
		askInternal := tranche.Mul(adjust)
		askAmount, err := utils.FromInternalCeil(askInternal, p.Precisions[buyIdx])
		if err != nil {
			return nil, err
		}
		if !askAmount.IsPositive() {
			return nil, types.ErrOrderTooSmall
		}

		var price sdkmath.LegacyDec
		if sellIdx == 0 {
			price = askInternal.Quo(perInternal)
		} else {
			price = perInternal.Quo(askInternal)
		}
		orders = append(orders, Order{
			SellAsset: types.NewAsset(p.Pair.AssetInfos[sellIdx], perOrder),
			AskAsset:  types.NewAsset(p.Pair.AssetInfos[buyIdx], askAmount),
			Price:     price,
		})
	}
	return orders, nil
}
