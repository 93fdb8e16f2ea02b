/*

The sync controller reconciles off-book fills into the pool and rebuilds the
mirrored order ladder. One Sync call is atomic: either the pool state, the
snapshot and the replacement ladder all advance, or none do.

*/

package orderbook

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/astrodex-labs/pcl-core/internal/logger"
	"github.com/astrodex-labs/pcl-core/internal/pool"
	"github.com/astrodex-labs/pcl-core/internal/types"
	"github.com/astrodex-labs/pcl-core/internal/utils"
)

// ErrNotReady gates mirroring until the observation ring has seen enough
// trades for its averages to be meaningful.
var ErrNotReady = errors.New("not enough trade observations to mirror the orderbook")

// Controller owns the orderbook mirroring state for one pool.
type Controller struct {
	log    zerolog.Logger
	engine *pool.Engine
	dex    DexClient
	bank   BalanceQuerier
	fees   pool.FeeQuerier

	account string
	market  string
	state   State

	// Now is the block-time source, overridable in tests.
	Now func() int64
}

// SyncResult reports one committed sync.
type SyncResult struct {
	SyncID string
	// Trade is the net cumulative fill folded into the pool, nil when the
	// drift had no trade shape (e.g. a donation).
	Trade     *pool.SyncTrade
	CancelAll bool
	Orders    []Order
	Intents   []types.TransferIntent
	Observed  [types.PoolAssetsNum]sdkmath.Int
}

// NewController validates params and seeds last_balances from the pool.
func NewController(engine *pool.Engine, dex DexClient, bank BalanceQuerier, fees pool.FeeQuerier, account, market string, params Params) (*Controller, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	snap := engine.Snapshot()
	return &Controller{
		log:     logger.GetForComponent("orderbook-sync"),
		engine:  engine,
		dex:     dex,
		bank:    bank,
		fees:    fees,
		account: account,
		market:  market,
		state:   State{Params: params, LastBalances: snap.Balances},
		Now:     engine.Now,
	}, nil
}

// State returns a copy of the controller snapshot.
func (c *Controller) State() State { return c.state }

// observedBalances is contract balance plus open-order escrow, per pool slot.
func (c *Controller) observedBalances(ctx context.Context, denoms [types.PoolAssetsNum]string) ([types.PoolAssetsNum]sdkmath.Int, error) {
	var observed [types.PoolAssetsNum]sdkmath.Int
	escrow, err := c.dex.Escrow(ctx, c.market)
	if err != nil {
		return observed, err
	}
	for i, denom := range denoms {
		bal, err := c.bank.Balance(ctx, c.account, denom)
		if err != nil {
			return observed, err
		}
		if locked, ok := escrow[denom]; ok {
			bal = bal.Add(locked)
		}
		observed[i] = bal
	}
	return observed, nil
}

// Sync runs the full reconcile-and-replace cycle. The engine serializes the
// pool transition; the controller snapshot advances only when it commits.
func (c *Controller) Sync(ctx context.Context, sender string) (*SyncResult, error) {
	if !c.state.Params.Enabled {
		return nil, fmt.Errorf("%w: orderbook mirroring is disabled", types.ErrNoNeedToSync)
	}
	if c.state.Params.Executor != "" && sender != c.state.Params.Executor {
		return nil, types.ErrUnauthorized
	}

	syncID := uuid.New().String()
	now := c.Now()
	snap := c.engine.Snapshot()
	if !snap.Observations.Ready() {
		return nil, ErrNotReady
	}

	observed, err := c.observedBalances(ctx, [types.PoolAssetsNum]string{
		snap.Pair.AssetInfos[0].Denom,
		snap.Pair.AssetInfos[1].Denom,
	})
	if err != nil {
		return nil, err
	}

	trade, drifted, err := c.netTrade(snap, observed)
	if err != nil {
		return nil, err
	}
	if !drifted {
		return nil, types.ErrNoNeedToSync
	}

	feeInfo, err := c.fees.FeeInfo(snap.Pair.PairType)
	if err != nil {
		return nil, fmt.Errorf("fee info query failed: %w", err)
	}

	result := &SyncResult{SyncID: syncID, Trade: trade, CancelAll: true, Observed: observed}
	var newBalances [types.PoolAssetsNum]sdkmath.Int
	err = c.engine.Update(func(p *pool.Pool) error {
		if trade != nil {
			intents, err := p.ApplySyncTrade(now, observed, *trade, feeInfo)
			if err != nil {
				return err
			}
			result.Intents = intents
		} else {
			p.Balances = observed
		}
		ladder, err := buildLadder(p, now, c.state)
		if err != nil {
			return err
		}
		result.Orders = ladder
		newBalances = p.Balances
		return nil
	})
	if err != nil {
		c.log.Debug().Str("sync_id", syncID).Err(err).Msg("Orderbook sync aborted")
		return nil, err
	}
	c.state.LastBalances = newBalances
	c.state.NeedReconcile = false

	c.log.Info().Str("sync_id", syncID).
		Bool("had_trade", trade != nil).
		Int("orders", len(result.Orders)).
		Msg("Orderbook sync committed")
	return result, nil
}

// netTrade diffs last_balances against observed and combines the per-side
// deltas into at most one net trade. Deltas below MinTradeSize are rounding
// noise and ignored.
func (c *Controller) netTrade(snap *pool.Pool, observed [types.PoolAssetsNum]sdkmath.Int) (*pool.SyncTrade, bool, error) {
	var deltas [types.PoolAssetsNum]sdkmath.LegacyDec
	drifted := false
	for i := range observed {
		diff := observed[i].Sub(c.state.LastBalances[i])
		mag, err := utils.ToInternal(diff.Abs(), snap.Precisions[i])
		if err != nil {
			return nil, false, err
		}
		if mag.LT(MinTradeSize) {
			deltas[i] = sdkmath.LegacyZeroDec()
			continue
		}
		drifted = true
		if diff.IsNegative() {
			mag = mag.Neg()
		}
		deltas[i] = mag
	}
	if !drifted {
		return nil, false, nil
	}
	// a trade shape is one side in, the other side out
	if deltas[0].IsPositive() && deltas[1].IsNegative() {
		return &pool.SyncTrade{OfferIdx: 0, OfferAmount: deltas[0], AskAmount: deltas[1].Neg()}, true, nil
	}
	if deltas[1].IsPositive() && deltas[0].IsNegative() {
		return &pool.SyncTrade{OfferIdx: 1, OfferAmount: deltas[1], AskAmount: deltas[0].Neg()}, true, nil
	}
	return nil, true, nil
}
