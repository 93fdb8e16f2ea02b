package pool

import (
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

var wideSpread = sdkmath.LegacyNewDecWithPrec(4, 1) // 0.4

func TestSwapChargesCommission(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	offer := asset("ubase", 1_000_000_000)
	res, err := e.Swap(SwapRequest{Sender: "trader1", OfferAsset: offer, MaxSpread: &wideSpread})
	require.NoError(t, err)
	require.NotEmpty(t, res.TradeID)
	require.Equal(t, "uquote", res.ReturnAsset.Info.Denom)

	// near the peg the fee is about mid_fee and slippage is small
	ret := res.ReturnAsset.Amount.Int64()
	require.Less(t, ret, offer.Amount.Int64())
	require.Greater(t, ret, int64(985_000_000))
	require.True(t, res.CommissionAmount.IsPositive())
	require.GreaterOrEqual(t, res.CommissionAmount.Int64(), int64(float64(ret)*0.0026*0.9))
	require.False(t, res.SpreadAmount.IsNegative())
	require.True(t, res.MakerFeeAmount.IsZero())
	require.True(t, res.ShareFeeAmount.IsZero())

	require.Len(t, res.Intents, 1)
	require.Equal(t, "return", res.Intents[0].Purpose)
	require.Equal(t, "trader1", res.Intents[0].Recipient)

	pr := e.Pool()
	require.Equal(t, seedAmount.Add(offer.Amount), pr.Assets[0].Amount)
	require.Equal(t, seedAmount.Sub(res.ReturnAsset.Amount), pr.Assets[1].Amount)
}

func TestSwapBothDirections(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	res, err := e.Swap(SwapRequest{
		Sender:     "trader1",
		OfferAsset: asset("uquote", 1_000_000_000),
		MaxSpread:  &wideSpread,
	})
	require.NoError(t, err)
	require.Equal(t, "ubase", res.ReturnAsset.Info.Denom)
	require.Greater(t, res.ReturnAsset.Amount.Int64(), int64(985_000_000))
	require.Less(t, res.ReturnAsset.Amount.Int64(), int64(1_000_000_000))
}

func TestSwapSendsToAlternateRecipient(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	res, err := e.Swap(SwapRequest{
		Sender:     "trader1",
		OfferAsset: asset("ubase", 1_000_000),
		MaxSpread:  &wideSpread,
		To:         "someoneelse",
	})
	require.NoError(t, err)
	require.Equal(t, "someoneelse", res.Intents[0].Recipient)
}

func TestSwapMaxSpreadAssertion(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	tight := sdkmath.LegacyNewDecWithPrec(1, 6) // 1e-6
	_, err := e.Swap(SwapRequest{
		Sender:     "trader1",
		OfferAsset: asset("ubase", 20_000_000_000),
		MaxSpread:  &tight,
	})
	require.ErrorIs(t, err, types.ErrMaxSpreadAssertion)
}

func TestSwapSpreadLimitCap(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	excessive := sdkmath.LegacyNewDecWithPrec(6, 1) // 0.6 > cap
	_, err := e.Swap(SwapRequest{
		Sender:     "trader1",
		OfferAsset: asset("ubase", 1_000_000),
		MaxSpread:  &excessive,
	})
	require.ErrorIs(t, err, types.ErrAllowedSpreadAssertion)
}

func TestSwapMaxSpreadExcludesCommission(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	offer := asset("ubase", 1_000_000_000)
	sim, err := e.Simulation(offer)
	require.NoError(t, err)

	// a window between the pure curve slippage and the curve slippage plus
	// commission: the fee must not count against the spread limit
	offerDec := sdkmath.LegacyNewDecFromInt(offer.Amount)
	covered := sdkmath.LegacyNewDecFromInt(sim.ReturnAmount.Add(sim.CommissionAmount.QuoRaw(2)))
	limit := sdkmath.LegacyOneDec().Sub(covered.Quo(offerDec))
	belief := sdkmath.LegacyOneDec()

	res, err := e.Swap(SwapRequest{
		Sender:      "trader1",
		OfferAsset:  offer,
		BeliefPrice: &belief,
		MaxSpread:   &limit,
	})
	require.NoError(t, err)
	require.Equal(t, sim.ReturnAmount, res.ReturnAsset.Amount)
}

func TestSwapSpreadRatioExcludesCommission(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	offer := asset("ubase", 20_000_000_000)
	sim, err := e.Simulation(offer)
	require.NoError(t, err)
	require.True(t, sim.SpreadAmount.IsPositive())

	// without a belief price the check reads spread over the pre-fee return
	// plus spread; a limit between that ratio and the post-fee one passes
	spreadDec := sdkmath.LegacyNewDecFromInt(sim.SpreadAmount)
	preFee := sdkmath.LegacyNewDecFromInt(sim.ReturnAmount.Add(sim.CommissionAmount).Add(sim.SpreadAmount))
	postFee := sdkmath.LegacyNewDecFromInt(sim.ReturnAmount.Add(sim.SpreadAmount))
	limit := spreadDec.Quo(preFee).Add(spreadDec.Quo(postFee)).QuoInt64(2)

	_, err = e.Swap(SwapRequest{
		Sender:     "trader1",
		OfferAsset: offer,
		MaxSpread:  &limit,
	})
	require.NoError(t, err)
}

func TestSwapBeliefPrice(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	belief := sdkmath.LegacyOneDec()
	_, err := e.Swap(SwapRequest{
		Sender:      "trader1",
		OfferAsset:  asset("ubase", 1_000_000_000),
		BeliefPrice: &belief,
		MaxSpread:   &wideSpread,
	})
	require.NoError(t, err)

	// a belief of 0.5 expects twice the return the curve can give
	greedy := sdkmath.LegacyNewDecWithPrec(5, 1)
	_, err = e.Swap(SwapRequest{
		Sender:      "trader1",
		OfferAsset:  asset("ubase", 1_000_000_000),
		BeliefPrice: &greedy,
		MaxSpread:   &wideSpread,
	})
	require.ErrorIs(t, err, types.ErrMaxSpreadAssertion)
}

func TestSwapSpreadGrowsWithOfferSize(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	prevRate := 2.0
	prevSpreadFrac := -1.0
	for _, units := range []int64{1_000, 2_000, 4_000, 8_000, 16_000, 32_000} {
		offer := asset("ubase", units*1_000_000)
		sim, err := e.Simulation(offer)
		require.NoError(t, err)

		// pre-fee realized rate falls and the spread fraction rises as the
		// offer digs deeper into the curve
		gross := float64(sim.ReturnAmount.Add(sim.CommissionAmount).Int64())
		rate := gross / float64(offer.Amount.Int64())
		spreadFrac := float64(sim.SpreadAmount.Int64()) / float64(offer.Amount.Int64())

		require.Less(t, rate, prevRate, "offer %dk", units/1_000)
		require.Greater(t, spreadFrac, prevSpreadFrac, "offer %dk", units/1_000)
		prevRate, prevSpreadFrac = rate, spreadFrac
	}
}

func TestSwapRejectsBadInputs(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	_, err := e.Swap(SwapRequest{Sender: "trader1", OfferAsset: asset("ubase", 1_000_000)})
	require.ErrorIs(t, err, types.ErrEmptyPool)

	seedLiquidity(t, e)

	_, err = e.Swap(SwapRequest{Sender: "trader1", OfferAsset: asset("ubase", 0)})
	require.ErrorIs(t, err, types.ErrSwapAmountZero)

	_, err = e.Swap(SwapRequest{Sender: "trader1", OfferAsset: asset("uother", 1_000_000)})
	require.ErrorIs(t, err, types.ErrAssetMismatch)
}

func TestSwapFailureLeavesStateUntouched(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)
	before := e.Pool()
	priceBefore := e.Config().PriceState

	tight := sdkmath.LegacyNewDecWithPrec(1, 6)
	_, err := e.Swap(SwapRequest{
		Sender:     "trader1",
		OfferAsset: asset("ubase", 20_000_000_000),
		MaxSpread:  &tight,
	})
	require.Error(t, err)

	require.Equal(t, before, e.Pool())
	require.Equal(t, priceBefore, e.Config().PriceState)
}

func TestSwapFeeSplit(t *testing.T) {
	fees := StaticFees{Info: types.FeeInfo{
		TotalFeeRate: sdkmath.LegacyNewDecWithPrec(26, 4),
		MakerFeeRate: sdkmath.LegacyNewDecWithPrec(5, 1), // half of the remainder
		FeeAddress:   "makersink",
	}}
	e, _ := newTestEngine(t, fees)
	require.NoError(t, e.UpdateFeeShare("owner1", &types.FeeShareConfig{Bps: 1_000, Recipient: "sharer"}))
	seedLiquidity(t, e)

	res, err := e.Swap(SwapRequest{
		Sender:     "trader1",
		OfferAsset: asset("ubase", 1_000_000_000),
		MaxSpread:  &wideSpread,
	})
	require.NoError(t, err)

	commission := float64(res.CommissionAmount.Int64())
	require.InDelta(t, commission*0.10, float64(res.ShareFeeAmount.Int64()), 2)
	require.InDelta(t, commission*0.90*0.5, float64(res.MakerFeeAmount.Int64()), 2)

	recipients := map[string]string{}
	for _, intent := range res.Intents {
		recipients[intent.Purpose] = intent.Recipient
	}
	require.Equal(t, "trader1", recipients["return"])
	require.Equal(t, "makersink", recipients["maker_fee"])
	require.Equal(t, "sharer", recipients["share_fee"])

	outflow := res.ReturnAsset.Amount.Add(res.MakerFeeAmount).Add(res.ShareFeeAmount)
	require.Equal(t, seedAmount.Sub(outflow), e.Pool().Assets[1].Amount)
}

func TestUpdateFeeShareAuthorization(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	err := e.UpdateFeeShare("stranger", &types.FeeShareConfig{Bps: 100, Recipient: "x"})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	err = e.UpdateFeeShare("owner1", &types.FeeShareConfig{Bps: 0, Recipient: "x"})
	require.ErrorIs(t, err, types.ErrInvalidPoolParams)

	require.NoError(t, e.UpdateFeeShare("owner1", &types.FeeShareConfig{Bps: 100, Recipient: "x"}))
	require.NotNil(t, e.Config().FeeShare)
	require.NoError(t, e.UpdateFeeShare("owner1", nil))
	require.Nil(t, e.Config().FeeShare)
}

func TestSimulationMatchesSwap(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	offer := asset("ubase", 3_000_000_000)
	sim, err := e.Simulation(offer)
	require.NoError(t, err)

	res, err := e.Swap(SwapRequest{Sender: "trader1", OfferAsset: offer, MaxSpread: &wideSpread})
	require.NoError(t, err)

	require.Equal(t, sim.ReturnAmount, res.ReturnAsset.Amount)
	require.Equal(t, sim.SpreadAmount, res.SpreadAmount)
	require.Equal(t, sim.CommissionAmount, res.CommissionAmount)
}

func TestReverseSimulationCoversAsk(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	ask := asset("uquote", 1_000_000_000)
	rev, err := e.ReverseSimulation(ask)
	require.NoError(t, err)
	require.True(t, rev.OfferAmount.IsPositive())
	require.True(t, rev.CommissionAmount.IsPositive())

	// the quote pre-inflates the fee with out_fee, so executing the swap with
	// the quoted offer returns at least the requested ask
	res, err := e.Swap(SwapRequest{
		Sender:     "trader1",
		OfferAsset: types.NewAsset(types.NativeAsset("ubase"), rev.OfferAmount),
		MaxSpread:  &wideSpread,
	})
	require.NoError(t, err)
	require.True(t, res.ReturnAsset.Amount.GTE(ask.Amount))
}

func TestReverseSimulationRejectsExcessAsk(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	_, err := e.ReverseSimulation(asset("uquote", 100_000_000_000))
	require.ErrorIs(t, err, types.ErrInsufficientPoolBalance)
}

func TestObserveAfterTrades(t *testing.T) {
	e, clock := newTestEngine(t, nil)
	seedLiquidity(t, e)

	_, err := e.Swap(SwapRequest{Sender: "trader1", OfferAsset: asset("ubase", 1_000_000_000), MaxSpread: &wideSpread})
	require.NoError(t, err)

	*clock = testNow + 60
	_, err = e.Swap(SwapRequest{Sender: "trader1", OfferAsset: asset("uquote", 1_000_000_000), MaxSpread: &wideSpread})
	require.NoError(t, err)

	*clock = testNow + 120
	price, err := e.Observe(0)
	require.NoError(t, err)
	require.InDelta(t, 1.0, price.MustFloat64(), 0.05)

	_, err = e.Observe(1_000)
	require.Error(t, err)
}

func TestConcurrentSwapsSerialize(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seedLiquidity(t, e)

	const swaps = 8
	errs := make(chan error, swaps)
	var wg sync.WaitGroup
	for i := 0; i < swaps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Swap(SwapRequest{
				Sender:     "trader1",
				OfferAsset: asset("ubase", 100_000_000),
				MaxSpread:  &wideSpread,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	pr := e.Pool()
	require.Equal(t, seedAmount.AddRaw(swaps*100_000_000), pr.Assets[0].Amount)
	require.True(t, pr.Assets[1].Amount.LT(seedAmount))
}
