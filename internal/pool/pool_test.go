package pool

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

const testNow = int64(1_700_000_000)

// seedAmount is 100k tokens per side at 6 decimals.
var seedAmount = sdkmath.NewInt(100_000_000_000)

func testInitParams() InitParams {
	return InitParams{
		AssetInfos: [types.PoolAssetsNum]types.AssetInfo{
			types.NativeAsset("ubase"),
			types.NativeAsset("uquote"),
		},
		LpDenom:     "factory/pool1/lp",
		Factory:     "factory1",
		Owner:       "owner1",
		LockAddress: "lock1",
		Params: types.PoolParams{
			MidFee:               sdkmath.LegacyNewDecWithPrec(26, 4),
			OutFee:               sdkmath.LegacyNewDecWithPrec(45, 4),
			FeeGamma:             sdkmath.LegacyNewDecWithPrec(2, 4),
			RepegProfitThreshold: sdkmath.LegacyNewDecWithPrec(1, 8),
			MinPriceScaleDelta:   sdkmath.LegacyNewDecWithPrec(5, 6),
			MaHalfTime:           600,
			PriceScale:           sdkmath.LegacyOneDec(),
		},
		Amp:   sdkmath.LegacyNewDec(40),
		Gamma: sdkmath.LegacyNewDecWithPrec(145, 6),
		Precisions: types.StaticPrecisions{
			"ubase":  6,
			"uquote": 6,
		},
		ObservationCapacity: 100,
		MinTradesToAvg:      0,
	}
}

func asset(denom string, amount int64) types.Asset {
	return types.NewAsset(types.NativeAsset(denom), sdkmath.NewInt(amount))
}

// newTestEngine builds an engine over a fresh pool with a settable clock.
func newTestEngine(t *testing.T, fees FeeQuerier) (*Engine, *int64) {
	t.Helper()
	p, err := NewPool(testInitParams(), testNow)
	require.NoError(t, err)
	if fees == nil {
		fees = StaticFees{Info: types.FeeInfo{
			TotalFeeRate: sdkmath.LegacyNewDecWithPrec(26, 4),
			MakerFeeRate: sdkmath.LegacyZeroDec(),
		}}
	}
	e := NewEngine(p, fees)
	clock := new(int64)
	*clock = testNow
	e.Now = func() int64 { return *clock }
	return e, clock
}

func seedLiquidity(t *testing.T, e *Engine) *ProvideResult {
	t.Helper()
	res, err := e.Provide(ProvideRequest{
		Sender: "lp1",
		Assets: []types.Asset{
			types.NewAsset(types.NativeAsset("ubase"), seedAmount),
			types.NewAsset(types.NativeAsset("uquote"), seedAmount),
		},
	})
	require.NoError(t, err)
	return res
}

func TestNewPoolValidation(t *testing.T) {
	params := testInitParams()
	params.AssetInfos[1] = params.AssetInfos[0]
	_, err := NewPool(params, testNow)
	require.ErrorIs(t, err, types.ErrInvalidAsset)

	params = testInitParams()
	params.Amp = sdkmath.LegacyNewDec(100_000)
	_, err = NewPool(params, testNow)
	require.ErrorIs(t, err, types.ErrAmpGammaOutOfBounds)

	params = testInitParams()
	params.Params.OutFee = sdkmath.LegacyZeroDec()
	_, err = NewPool(params, testNow)
	require.ErrorIs(t, err, types.ErrInvalidPoolParams)

	params = testInitParams()
	params.AssetInfos[0] = types.NativeAsset("unknown")
	_, err = NewPool(params, testNow)
	require.ErrorIs(t, err, types.ErrInvalidAsset)
}

func TestProvideInitialMintsAndLocks(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	res := seedLiquidity(t, e)

	// a balanced 100k/100k deposit at scale 1 has invariant 200k, minted at
	// 6 LP decimals minus the permanent lock
	require.Equal(t, sdkmath.NewInt(1_000), res.LockedLpAmount)
	require.InDelta(t, 200_000_000_000-1_000, float64(res.MintedLpAmount.Int64()), 1_000)

	require.Len(t, res.Intents, 2)
	require.Equal(t, "lp_mint", res.Intents[0].Purpose)
	require.Equal(t, "lp1", res.Intents[0].Recipient)
	require.Equal(t, "lp_lock", res.Intents[1].Purpose)
	require.Equal(t, "lock1", res.Intents[1].Recipient)
	require.Equal(t, sdkmath.NewInt(1_000), res.Intents[1].Coin.Amount)

	cfg := e.Config()
	require.InDelta(t, 0.5, cfg.PriceState.XcpProfitReal.MustFloat64(), 1e-9)
	require.InDelta(t, 200_000.0, cfg.PriceState.D.MustFloat64(), 1e-6)

	pr := e.Pool()
	require.Equal(t, seedAmount, pr.Assets[0].Amount)
	require.Equal(t, seedAmount, pr.Assets[1].Amount)
	require.Equal(t, res.MintedLpAmount.Add(res.LockedLpAmount), pr.TotalLpShares)
}

func TestProvideInitialRequiresBothSides(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.Provide(ProvideRequest{
		Sender: "lp1",
		Assets: []types.Asset{asset("ubase", 1_000_000_000)},
	})
	require.ErrorIs(t, err, types.ErrInvalidAsset)
}

func TestProvideBelowMinimumLiquidity(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.Provide(ProvideRequest{
		Sender: "lp1",
		Assets: []types.Asset{asset("ubase", 400), asset("uquote", 400)},
	})
	require.ErrorIs(t, err, types.ErrMinimumLiquidityAmount)
}

func TestProvideProportionalMint(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)
	before := e.Pool().TotalLpShares

	res, err := e.Provide(ProvideRequest{
		Sender: "lp2",
		Assets: []types.Asset{
			types.NewAsset(types.NativeAsset("ubase"), seedAmount),
			types.NewAsset(types.NativeAsset("uquote"), seedAmount),
		},
	})
	require.NoError(t, err)

	// doubling a balanced pool doubles the invariant, so the mint matches the
	// existing supply
	require.InDelta(t, float64(before.Int64()), float64(res.MintedLpAmount.Int64()), 1e6)
	require.True(t, res.LockedLpAmount.IsZero())
	require.Equal(t, before.Add(res.MintedLpAmount), e.Pool().TotalLpShares)
}

func TestProvideSingleSided(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)
	before := e.Pool().TotalLpShares

	res, err := e.Provide(ProvideRequest{
		Sender: "lp2",
		Assets: []types.Asset{asset("ubase", 10_000_000_000)},
	})
	require.NoError(t, err)
	require.True(t, res.MintedLpAmount.IsPositive())

	// a one-sided 10k deposit is worth strictly less than the balanced
	// 5k/5k deposit of the same total, and pays the imbalance fee on top
	balancedEquivalent := before.Int64() / 20
	require.Less(t, res.MintedLpAmount.Int64(), balancedEquivalent)
	require.Greater(t, res.MintedLpAmount.Int64(), balancedEquivalent*9/10)
}

func TestProvideMinLpAssertionRollsBack(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)
	before := e.Pool()

	min := sdkmath.NewInt(1_000_000_000_000_000)
	_, err := e.Provide(ProvideRequest{
		Sender:         "lp2",
		Assets:         []types.Asset{asset("ubase", 1_000_000_000), asset("uquote", 1_000_000_000)},
		MinLpToReceive: &min,
	})
	require.ErrorIs(t, err, types.ErrMinReceiveAssertion)

	after := e.Pool()
	require.Equal(t, before.TotalLpShares, after.TotalLpShares)
	require.Equal(t, before.Assets, after.Assets)
}

func TestProvideRejectsExcessiveTolerance(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	tolerance := sdkmath.LegacyNewDecWithPrec(6, 1) // 0.6 > cap
	_, err := e.Provide(ProvideRequest{
		Sender:            "lp2",
		Assets:            []types.Asset{asset("ubase", 1_000_000), asset("uquote", 1_000_000)},
		SlippageTolerance: &tolerance,
	})
	require.ErrorIs(t, err, types.ErrAllowedSpreadAssertion)
}

func TestProvideRejectsDuplicateAsset(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.Provide(ProvideRequest{
		Sender: "lp1",
		Assets: []types.Asset{asset("ubase", 1_000_000), asset("ubase", 1_000_000)},
	})
	require.ErrorIs(t, err, types.ErrInvalidAsset)
}

func TestWithdrawProRata(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)
	priceBefore := e.Config().PriceState

	total := e.Pool().TotalLpShares
	half := total.QuoRaw(2)
	res, err := e.Withdraw(WithdrawRequest{Sender: "lp1", LpAmount: half})
	require.NoError(t, err)

	require.Equal(t, half, res.BurnedLpAmount)
	require.True(t, res.RefundedLpAmount.IsZero())
	for i := range res.RefundedAssets {
		require.Equal(t, seedAmount.Mul(half).Quo(total), res.RefundedAssets[i].Amount)
	}
	require.Equal(t, total.Sub(half), e.Pool().TotalLpShares)

	// a pro-rata burn keeps the curve shape and leaves the price state alone
	require.Equal(t, priceBefore, e.Config().PriceState)
}

func TestProvideWithdrawRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	res := seedLiquidity(t, e)
	total := e.Pool().TotalLpShares

	out, err := e.Withdraw(WithdrawRequest{Sender: "lp1", LpAmount: res.MintedLpAmount})
	require.NoError(t, err)
	require.Equal(t, res.MintedLpAmount, out.BurnedLpAmount)
	require.True(t, out.RefundedLpAmount.IsZero())

	// burning the entire mint returns each deposit minus the share backing
	// the locked minimum liquidity (1000/200e9 of 100k, about 500 units)
	for i := range out.RefundedAssets {
		require.Equal(t, seedAmount.Mul(res.MintedLpAmount).Quo(total), out.RefundedAssets[i].Amount)
		require.InDelta(t, float64(seedAmount.Int64()-500), float64(out.RefundedAssets[i].Amount.Int64()), 2)
	}

	after := e.Pool()
	require.Equal(t, res.LockedLpAmount, after.TotalLpShares)
	for i := range after.Assets {
		require.Equal(t, seedAmount.Sub(out.RefundedAssets[i].Amount), after.Assets[i].Amount)
	}
}

func TestWithdrawMinReceiveAssertion(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	_, err := e.Withdraw(WithdrawRequest{
		Sender:             "lp1",
		LpAmount:           sdkmath.NewInt(1_000_000_000),
		MinAssetsToReceive: []types.Asset{asset("ubase", 10_000_000_000)},
	})
	require.ErrorIs(t, err, types.ErrMinReceiveAssertion)
}

func TestWithdrawImbalancedRefundsSurplus(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)
	balancesBefore := e.Pool().Assets

	offered := sdkmath.NewInt(2_000_000_000)
	res, err := e.Withdraw(WithdrawRequest{
		Sender:           "lp1",
		LpAmount:         offered,
		ImbalancedAssets: []types.Asset{asset("ubase", 1_000_000_000)},
	})
	require.NoError(t, err)

	// 1k tokens out of a 200k pool costs ~1/200 of the supply in LP shares
	require.InDelta(t, 1e9, float64(res.BurnedLpAmount.Int64()), 1e4)
	require.Equal(t, offered.Sub(res.BurnedLpAmount), res.RefundedLpAmount)
	require.Equal(t, sdkmath.NewInt(1_000_000_000), res.RefundedAssets[0].Amount)
	require.True(t, res.RefundedAssets[1].Amount.IsZero())

	purposes := make([]string, 0, len(res.Intents))
	for _, intent := range res.Intents {
		purposes = append(purposes, intent.Purpose)
	}
	require.Contains(t, purposes, "withdraw")
	require.Contains(t, purposes, "refund")

	after := e.Pool().Assets
	require.Equal(t, balancesBefore[0].Amount.Sub(res.RefundedAssets[0].Amount), after[0].Amount)
	require.Equal(t, balancesBefore[1].Amount, after[1].Amount)
}

func TestWithdrawRejectsExcessLp(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	_, err := e.Withdraw(WithdrawRequest{
		Sender:   "lp1",
		LpAmount: e.Pool().TotalLpShares.AddRaw(1),
	})
	require.ErrorIs(t, err, types.ErrInsufficientLpTokens)

	_, err = e.Withdraw(WithdrawRequest{Sender: "lp1", LpAmount: sdkmath.ZeroInt()})
	require.ErrorIs(t, err, types.ErrInsufficientLpTokens)
}

func TestWithdrawFromEmptyPool(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.Withdraw(WithdrawRequest{Sender: "lp1", LpAmount: sdkmath.NewInt(1)})
	require.ErrorIs(t, err, types.ErrEmptyPool)
}

func TestShareQuery(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	_, err := e.Share(sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrEmptyPool)

	seedLiquidity(t, e)
	total := e.Pool().TotalLpShares

	assets, err := e.Share(total)
	require.NoError(t, err)
	require.Equal(t, seedAmount, assets[0].Amount)
	require.Equal(t, seedAmount, assets[1].Amount)

	assets, err = e.Share(total.QuoRaw(4))
	require.NoError(t, err)
	require.Equal(t, seedAmount.Mul(total.QuoRaw(4)).Quo(total), assets[0].Amount)

	_, err = e.Share(total.AddRaw(1))
	require.ErrorIs(t, err, types.ErrInsufficientLpTokens)
}

func TestCumulativePricesAdvance(t *testing.T) {
	e, clock := newTestEngine(t, nil)
	seedLiquidity(t, e)

	*clock = testNow + 100
	resp := e.CumulativePrices()

	// 100 seconds at last_prices = 1 on both legs
	require.Equal(t, "100000000", resp.Price0Cumulative)
	require.Equal(t, "100000000", resp.Price1Cumulative)
	require.Equal(t, testNow+100, resp.BlockTimeLast)
}
