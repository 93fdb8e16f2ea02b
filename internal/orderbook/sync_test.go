package orderbook

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/astrodex-labs/pcl-core/internal/pool"
	"github.com/astrodex-labs/pcl-core/internal/types"
)

const testNow = int64(1_700_000_000)

type fakeDex struct {
	escrow map[string]sdkmath.Int
}

func (f *fakeDex) Escrow(context.Context, string) (map[string]sdkmath.Int, error) {
	return f.escrow, nil
}

type fakeBank struct {
	balances map[string]sdkmath.Int
}

func (f *fakeBank) Balance(_ context.Context, _ string, denom string) (sdkmath.Int, error) {
	if amount, ok := f.balances[denom]; ok {
		return amount, nil
	}
	return sdkmath.ZeroInt(), nil
}

func testLadderParams() Params {
	return Params{
		OrdersNumber:       2,
		LiquidityPercent:   sdkmath.LegacyNewDecWithPrec(1, 1), // 10%
		MinAsset0OrderSize: sdkmath.NewInt(1_000),
		MinAsset1OrderSize: sdkmath.NewInt(1_000),
		AvgPriceAdjustment: sdkmath.LegacyNewDecWithPrec(5, 4),
		Executor:           "executor1",
		Enabled:            true,
	}
}

type syncFixture struct {
	engine     *pool.Engine
	controller *Controller
	bank       *fakeBank
	dex        *fakeDex
	clock      *int64
}

// newSyncFixture seeds a balanced 100k/100k pool, mirrors the balances into
// the fake bank, and wires a controller around it.
func newSyncFixture(t *testing.T, minTradesToAvg int, params Params) *syncFixture {
	t.Helper()

	seed := sdkmath.NewInt(100_000_000_000)
	p, err := pool.NewPool(pool.InitParams{
		AssetInfos: [types.PoolAssetsNum]types.AssetInfo{
			types.NativeAsset("ubase"),
			types.NativeAsset("uquote"),
		},
		LpDenom:     "factory/pool1/lp",
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
		Amp:                 sdkmath.LegacyNewDec(40),
		Gamma:               sdkmath.LegacyNewDecWithPrec(145, 6),
		Precisions:          types.StaticPrecisions{"ubase": 6, "uquote": 6},
		ObservationCapacity: 100,
		MinTradesToAvg:      minTradesToAvg,
	}, testNow)
	require.NoError(t, err)

	fees := pool.StaticFees{Info: types.FeeInfo{
		TotalFeeRate: sdkmath.LegacyNewDecWithPrec(26, 4),
		MakerFeeRate: sdkmath.LegacyZeroDec(),
	}}
	engine := pool.NewEngine(p, fees)
	clock := new(int64)
	*clock = testNow
	engine.Now = func() int64 { return *clock }

	_, err = engine.Provide(pool.ProvideRequest{
		Sender: "lp1",
		Assets: []types.Asset{
			types.NewAsset(types.NativeAsset("ubase"), seed),
			types.NewAsset(types.NativeAsset("uquote"), seed),
		},
	})
	require.NoError(t, err)

	bank := &fakeBank{balances: map[string]sdkmath.Int{
		"ubase":  seed,
		"uquote": seed,
	}}
	dex := &fakeDex{escrow: map[string]sdkmath.Int{}}

	controller, err := NewController(engine, dex, bank, fees, "custody1", "market1", params)
	require.NoError(t, err)
	return &syncFixture{engine: engine, controller: controller, bank: bank, dex: dex, clock: clock}
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, testLadderParams().Validate())

	p := testLadderParams()
	p.OrdersNumber = 0
	require.ErrorIs(t, p.Validate(), types.ErrInvalidPoolParams)

	p = testLadderParams()
	p.LiquidityPercent = sdkmath.LegacyZeroDec()
	require.ErrorIs(t, p.Validate(), types.ErrInvalidPoolParams)

	p = testLadderParams()
	p.AvgPriceAdjustment = sdkmath.LegacyOneDec()
	require.ErrorIs(t, p.Validate(), types.ErrInvalidPoolParams)

	p = testLadderParams()
	p.MinAsset0OrderSize = sdkmath.NewInt(-1)
	require.ErrorIs(t, p.Validate(), types.ErrInvalidPoolParams)
}

func TestSyncNoDrift(t *testing.T) {
	f := newSyncFixture(t, 0, testLadderParams())
	_, err := f.controller.Sync(context.Background(), "executor1")
	require.ErrorIs(t, err, types.ErrNoNeedToSync)
}

func TestSyncExecutorGate(t *testing.T) {
	f := newSyncFixture(t, 0, testLadderParams())
	_, err := f.controller.Sync(context.Background(), "someoneelse")
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestSyncDisabled(t *testing.T) {
	params := testLadderParams()
	params.Enabled = false
	f := newSyncFixture(t, 0, params)
	_, err := f.controller.Sync(context.Background(), "executor1")
	require.ErrorIs(t, err, types.ErrNoNeedToSync)
}

func TestSyncNotReady(t *testing.T) {
	f := newSyncFixture(t, 5, testLadderParams())
	f.bank.balances["ubase"] = f.bank.balances["ubase"].AddRaw(1_000_000_000)
	_, err := f.controller.Sync(context.Background(), "executor1")
	require.ErrorIs(t, err, ErrNotReady)
}

func TestSyncAppliesNetTrade(t *testing.T) {
	f := newSyncFixture(t, 0, testLadderParams())
	*f.clock = testNow + 60

	// an off-book fill bought 900 quote for 1000 base; part of the received
	// base still sits in open-order escrow
	f.bank.balances["ubase"] = sdkmath.NewInt(100_800_000_000)
	f.dex.escrow["ubase"] = sdkmath.NewInt(200_000_000)
	f.bank.balances["uquote"] = sdkmath.NewInt(99_100_000_000)

	res, err := f.controller.Sync(context.Background(), "executor1")
	require.NoError(t, err)
	require.NotEmpty(t, res.SyncID)
	require.True(t, res.CancelAll)

	require.NotNil(t, res.Trade)
	require.Equal(t, 0, res.Trade.OfferIdx)
	require.True(t, res.Trade.OfferAmount.Equal(sdkmath.LegacyNewDec(1_000)))
	require.True(t, res.Trade.AskAmount.Equal(sdkmath.LegacyNewDec(900)))

	observed := [types.PoolAssetsNum]sdkmath.Int{
		sdkmath.NewInt(101_000_000_000),
		sdkmath.NewInt(99_100_000_000),
	}
	require.Equal(t, observed, res.Observed)

	// zero maker fee: the pool adopts the observed balances unchanged
	pr := f.engine.Pool()
	require.Equal(t, observed[0], pr.Assets[0].Amount)
	require.Equal(t, observed[1], pr.Assets[1].Amount)
	require.Equal(t, observed, f.controller.State().LastBalances)

	// replacement ladder: orders_number per side
	require.Len(t, res.Orders, 4)
	for i, order := range res.Orders {
		require.True(t, order.SellAsset.Amount.IsPositive(), "order %d", i)
		require.True(t, order.AskAsset.Amount.IsPositive(), "order %d", i)
		require.True(t, order.Price.IsPositive(), "order %d", i)
	}
	require.Equal(t, "ubase", res.Orders[0].SellAsset.Info.Denom)
	require.Equal(t, "ubase", res.Orders[1].SellAsset.Info.Denom)
	require.Equal(t, "uquote", res.Orders[2].SellAsset.Info.Denom)
	require.Equal(t, "uquote", res.Orders[3].SellAsset.Info.Denom)

	// running again with no further fills is a no-op
	_, err = f.controller.Sync(context.Background(), "executor1")
	require.ErrorIs(t, err, types.ErrNoNeedToSync)
}

func TestSyncDonationHasNoTradeShape(t *testing.T) {
	f := newSyncFixture(t, 0, testLadderParams())
	*f.clock = testNow + 60

	f.bank.balances["ubase"] = f.bank.balances["ubase"].AddRaw(500_000_000)
	f.bank.balances["uquote"] = f.bank.balances["uquote"].AddRaw(500_000_000)

	res, err := f.controller.Sync(context.Background(), "executor1")
	require.NoError(t, err)
	require.Nil(t, res.Trade)
	require.Empty(t, res.Intents)
	require.Len(t, res.Orders, 4)

	pr := f.engine.Pool()
	require.Equal(t, f.bank.balances["ubase"], pr.Assets[0].Amount)
	require.Equal(t, f.bank.balances["uquote"], pr.Assets[1].Amount)
}

func TestSyncChargesMakerFeeOnFills(t *testing.T) {
	params := testLadderParams()
	f := newSyncFixture(t, 0, params)

	// swap in a maker-fee querier for the controller only
	makerFees := pool.StaticFees{Info: types.FeeInfo{
		TotalFeeRate: sdkmath.LegacyNewDecWithPrec(26, 4),
		MakerFeeRate: sdkmath.LegacyNewDecWithPrec(5, 1),
		FeeAddress:   "makersink",
	}}
	controller, err := NewController(f.engine, f.dex, f.bank, makerFees, "custody1", "market1", params)
	require.NoError(t, err)

	*f.clock = testNow + 60
	f.bank.balances["ubase"] = sdkmath.NewInt(101_000_000_000)
	f.bank.balances["uquote"] = sdkmath.NewInt(99_100_000_000)

	res, err := controller.Sync(context.Background(), "executor1")
	require.NoError(t, err)
	require.Len(t, res.Intents, 1)
	require.Equal(t, "maker_fee", res.Intents[0].Purpose)
	require.Equal(t, "makersink", res.Intents[0].Recipient)

	// worst-case out_fee on the 900-quote fill, half routed to the maker:
	// 900 * 0.0045 * 0.5 = 2.025 quote tokens
	require.InDelta(t, 2_025_000, float64(res.Intents[0].Coin.Amount.Int64()), 1)

	// the snapshot nets out the fee transfer
	last := controller.State().LastBalances
	require.Equal(t, res.Observed[0], last[0])
	require.Equal(t, res.Observed[1].Sub(res.Intents[0].Coin.Amount), last[1])

	// once the host executes the fee intent, the next sync is a no-op
	f.bank.balances["uquote"] = f.bank.balances["uquote"].Sub(res.Intents[0].Coin.Amount)
	_, err = controller.Sync(context.Background(), "executor1")
	require.ErrorIs(t, err, types.ErrNoNeedToSync)
}

func TestSyncIgnoresDustDrift(t *testing.T) {
	seed, ok := sdkmath.NewIntFromString("100000000000000000000000") // 100k tokens at 18 decimals
	require.True(t, ok)

	p, err := pool.NewPool(pool.InitParams{
		AssetInfos: [types.PoolAssetsNum]types.AssetInfo{
			types.NativeAsset("abase"),
			types.NativeAsset("aquote"),
		},
		LpDenom:     "factory/pool2/lp",
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
		Amp:                 sdkmath.LegacyNewDec(40),
		Gamma:               sdkmath.LegacyNewDecWithPrec(145, 6),
		Precisions:          types.StaticPrecisions{"abase": 18, "aquote": 18},
		ObservationCapacity: 100,
		MinTradesToAvg:      0,
	}, testNow)
	require.NoError(t, err)

	fees := pool.StaticFees{Info: types.FeeInfo{
		TotalFeeRate: sdkmath.LegacyNewDecWithPrec(26, 4),
		MakerFeeRate: sdkmath.LegacyZeroDec(),
	}}
	engine := pool.NewEngine(p, fees)
	engine.Now = func() int64 { return testNow }
	_, err = engine.Provide(pool.ProvideRequest{
		Sender: "lp1",
		Assets: []types.Asset{
			types.NewAsset(types.NativeAsset("abase"), seed),
			types.NewAsset(types.NativeAsset("aquote"), seed),
		},
	})
	require.NoError(t, err)

	bank := &fakeBank{balances: map[string]sdkmath.Int{
		"abase":  seed.AddRaw(100), // 1e-16 tokens, below MinTradeSize
		"aquote": seed,
	}}
	controller, err := NewController(engine, &fakeDex{escrow: map[string]sdkmath.Int{}}, bank, fees, "custody1", "market1", testLadderParams())
	require.NoError(t, err)

	_, err = controller.Sync(context.Background(), "executor1")
	require.ErrorIs(t, err, types.ErrNoNeedToSync)
}

func TestLadderSkipsThinSide(t *testing.T) {
	params := testLadderParams()
	params.MinAsset0OrderSize = sdkmath.NewInt(100_000_000_000) // above any per-order amount
	f := newSyncFixture(t, 0, params)
	*f.clock = testNow + 60

	f.bank.balances["ubase"] = f.bank.balances["ubase"].AddRaw(500_000_000)
	f.bank.balances["uquote"] = f.bank.balances["uquote"].AddRaw(500_000_000)

	res, err := f.controller.Sync(context.Background(), "executor1")
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	for _, order := range res.Orders {
		require.Equal(t, "uquote", order.SellAsset.Info.Denom)
	}
}
