/*

Daemon orchestration: the periodic loop that syncs the pool with the external
orderbook and persists pool snapshots. Each cycle is independent; a failed
cycle logs and waits for the next tick.

*/

package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/astrodex-labs/pcl-core/internal/logger"
	"github.com/astrodex-labs/pcl-core/internal/orderbook"
	"github.com/astrodex-labs/pcl-core/internal/pool"
	"github.com/astrodex-labs/pcl-core/internal/state"
	"github.com/astrodex-labs/pcl-core/internal/types"
)

// Config wires the daemon's dependencies.
type Config struct {
	Engine     *pool.Engine
	Controller *orderbook.Controller // nil disables orderbook syncing
	PairID     string
	// Executor is the identity the daemon syncs as.
	Executor string

	SyncInterval     time.Duration
	SnapshotInterval time.Duration
}

// Daemon runs the background maintenance loops for one pool.
type Daemon struct {
	log zerolog.Logger
	cfg Config
}

// New validates the configuration and returns a daemon.
func New(cfg Config) (*Daemon, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("daemon requires a pool engine")
	}
	if cfg.PairID == "" {
		return nil, fmt.Errorf("daemon requires a pair id")
	}
	return &Daemon{
		log: logger.GetForComponent("daemon"),
		cfg: cfg,
	}, nil
}

// RunLoop blocks until ctx is cancelled, running syncs and snapshots on their
// configured intervals.
func (d *Daemon) RunLoop(ctx context.Context) {
	d.log.Info().
		Str("pair_id", d.cfg.PairID).
		Dur("sync_interval", d.cfg.SyncInterval).
		Dur("snapshot_interval", d.cfg.SnapshotInterval).
		Msg("Daemon loop starting")

	var syncTick <-chan time.Time
	if d.cfg.Controller != nil && d.cfg.SyncInterval > 0 {
		ticker := time.NewTicker(d.cfg.SyncInterval)
		defer ticker.Stop()
		syncTick = ticker.C
	}
	var snapshotTick <-chan time.Time
	if d.cfg.SnapshotInterval > 0 {
		ticker := time.NewTicker(d.cfg.SnapshotInterval)
		defer ticker.Stop()
		snapshotTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("Daemon loop stopping")
			return
		case <-syncTick:
			d.runSync(ctx)
		case <-snapshotTick:
			d.persistSnapshot()
		}
	}
}

// runSync performs one orderbook sync cycle and records its receipt.
func (d *Daemon) runSync(ctx context.Context) {
	result, err := d.cfg.Controller.Sync(ctx, d.cfg.Executor)
	if err != nil {
		if errors.Is(err, types.ErrNoNeedToSync) {
			d.log.Debug().Msg("Orderbook sync: nothing to do")
			return
		}
		d.log.Error().Err(err).Msg("Orderbook sync failed")
		return
	}

	sequence, err := state.IncrementSyncSequence(d.cfg.PairID)
	if err != nil {
		d.log.Error().Err(err).Msg("Failed to advance sync sequence")
		return
	}
	receipt := state.SyncReceipt{
		SyncID:       result.SyncID,
		PairID:       d.cfg.PairID,
		Sequence:     sequence,
		HadTrade:     result.Trade != nil,
		OrdersPlaced: len(result.Orders),
		Intents:      result.Intents,
	}
	if result.Trade != nil {
		idx := result.Trade.OfferIdx
		receipt.OfferIdx = &idx
		receipt.OfferAmount = result.Trade.OfferAmount.String()
		receipt.AskAmount = result.Trade.AskAmount.String()
	}
	if _, err := state.SaveSyncReceipt(receipt); err != nil {
		d.log.Error().Err(err).Str("sync_id", result.SyncID).Msg("Failed to save sync receipt")
	}
}

// persistSnapshot writes the current pool state to the database.
func (d *Daemon) persistSnapshot() {
	snap := d.cfg.Engine.Snapshot()
	record := state.PoolSnapshot{
		PairID:           d.cfg.PairID,
		TakenAt:          time.Now().UTC(),
		Balance0:         snap.Balances[0].String(),
		Balance1:         snap.Balances[1].String(),
		TotalLp:          snap.TotalLp.String(),
		PriceState:       snap.Price,
		AmpGamma:         snap.AmpGamma,
		Price0Cumulative: snap.Accumulator.Price0Cumulative.String(),
		Price1Cumulative: snap.Accumulator.Price1Cumulative.String(),
		BlockTimeLast:    snap.Accumulator.BlockTimeLast,
		LastRampStart:    snap.LastRampStart,
	}
	if d.cfg.Controller != nil {
		st := d.cfg.Controller.State()
		record.OrderbookBalances = []string{
			st.LastBalances[0].String(),
			st.LastBalances[1].String(),
		}
	}
	if _, err := state.SavePoolSnapshot(record); err != nil {
		d.log.Error().Err(err).Msg("Failed to persist pool snapshot")
	}
}
