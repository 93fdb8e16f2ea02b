/*

Engine: the single owner of a Pool. Every mutating operation runs against a
deep copy under the engine mutex and the copy is swapped in only on success,
so callers observe either the full transition or none of it.

*/

package pool

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/astrodex-labs/pcl-core/internal/logger"
	"github.com/astrodex-labs/pcl-core/internal/types"
)

// FeeQuerier supplies the factory-level fee configuration (maker fee rate and
// its sink address) at trade time.
type FeeQuerier interface {
	FeeInfo(pairType string) (types.FeeInfo, error)
}

// StaticFees is a FeeQuerier with a fixed answer, used in tests and for pools
// detached from a factory.
type StaticFees struct {
	Info types.FeeInfo
}

func (s StaticFees) FeeInfo(string) (types.FeeInfo, error) { return s.Info, nil }

// Engine serializes all pool operations.
type Engine struct {
	mu   sync.Mutex
	log  zerolog.Logger
	fees FeeQuerier
	pool *Pool

	// Now is the block-time source, overridable in tests.
	Now func() int64
}

// NewEngine wraps an instantiated pool.
func NewEngine(p *Pool, fees FeeQuerier) *Engine {
	return &Engine{
		log:  logger.GetForComponent("pool-engine"),
		fees: fees,
		pool: p,
		Now:  func() int64 { return time.Now().Unix() },
	}
}

// Swap executes a swap and returns the committed result.
func (e *Engine) Swap(req SwapRequest) (*SwapResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tradeID := uuid.New().String()
	now := e.Now()
	fees, err := e.fees.FeeInfo(e.pool.Pair.PairType)
	if err != nil {
		return nil, fmt.Errorf("fee info query failed: %w", err)
	}

	next := e.pool.Clone()
	result, err := next.applySwap(now, req, fees)
	if err != nil {
		e.log.Debug().Str("trade_id", tradeID).Err(err).
			Str("offer", req.OfferAsset.String()).Msg("Swap rejected")
		return nil, err
	}
	result.TradeID = tradeID
	e.pool = next

	e.log.Info().Str("trade_id", tradeID).
		Str("offer", req.OfferAsset.String()).
		Str("return", result.ReturnAsset.String()).
		Str("commission", result.CommissionAmount.String()).
		Str("price_scale", next.Price.PriceScale.String()).
		Msg("Swap committed")
	return result, nil
}

// Provide deposits liquidity and mints LP shares.
func (e *Engine) Provide(req ProvideRequest) (*ProvideResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tradeID := uuid.New().String()
	next := e.pool.Clone()
	result, err := next.applyProvide(e.Now(), req)
	if err != nil {
		e.log.Debug().Str("trade_id", tradeID).Err(err).Msg("Provide rejected")
		return nil, err
	}
	result.TradeID = tradeID
	e.pool = next

	e.log.Info().Str("trade_id", tradeID).
		Str("minted_lp", result.MintedLpAmount.String()).
		Str("total_lp", next.TotalLp.String()).
		Msg("Liquidity provided")
	return result, nil
}

// Withdraw burns LP shares and returns the underlying assets.
func (e *Engine) Withdraw(req WithdrawRequest) (*WithdrawResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tradeID := uuid.New().String()
	next := e.pool.Clone()
	result, err := next.applyWithdraw(e.Now(), req)
	if err != nil {
		e.log.Debug().Str("trade_id", tradeID).Err(err).Msg("Withdraw rejected")
		return nil, err
	}
	result.TradeID = tradeID
	e.pool = next

	e.log.Info().Str("trade_id", tradeID).
		Str("burned_lp", result.BurnedLpAmount.String()).
		Str("total_lp", next.TotalLp.String()).
		Msg("Liquidity withdrawn")
	return result, nil
}

// StartRamp schedules an (amp, gamma) transition. Owner only.
func (e *Engine) StartRamp(sender string, futureAmp, futureGamma sdkmath.LegacyDec, futureTime int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sender != e.pool.Owner {
		return types.ErrUnauthorized
	}
	next := e.pool.Clone()
	if err := next.StartRamp(e.Now(), futureAmp, futureGamma, futureTime); err != nil {
		return err
	}
	e.pool = next
	e.log.Info().
		Str("future_amp", futureAmp.String()).
		Str("future_gamma", futureGamma.String()).
		Int64("future_time", futureTime).
		Msg("Parameter ramp started")
	return nil
}

// StopRamp freezes (amp, gamma) at their current values. Owner only.
func (e *Engine) StopRamp(sender string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sender != e.pool.Owner {
		return types.ErrUnauthorized
	}
	next := e.pool.Clone()
	next.StopRamp(e.Now())
	e.pool = next
	e.log.Info().Msg("Parameter ramp stopped")
	return nil
}

// UpdateFeeShare installs or clears the fee-share sink. Owner only.
func (e *Engine) UpdateFeeShare(sender string, cfg *types.FeeShareConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sender != e.pool.Owner {
		return types.ErrUnauthorized
	}
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	next := e.pool.Clone()
	next.FeeShare = cfg
	e.pool = next
	return nil
}

// Snapshot returns a deep copy of the current pool state.
func (e *Engine) Snapshot() *Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Clone()
}

// Restore replaces the engine's pool, used when loading a persisted snapshot.
func (e *Engine) Restore(p *Pool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool = p
}

// Pair returns the static pair metadata.
func (e *Engine) Pair() types.PairInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Info()
}

// Pool reports current balances and LP supply.
func (e *Engine) Pool() types.PoolResponse {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.PoolResponse()
}

// Config reports the pool configuration and price state.
func (e *Engine) Config() types.ConfigResponse {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.ConfigResponse()
}

// Share returns the assets redeemable for lpAmount.
func (e *Engine) Share(lpAmount sdkmath.Int) ([types.PoolAssetsNum]types.Asset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Share(lpAmount)
}

// Simulation quotes a swap without committing it.
func (e *Engine) Simulation(offer types.Asset) (types.SimulationResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.simulate(e.Now(), offer)
}

// ReverseSimulation quotes the offer needed for a target ask amount.
func (e *Engine) ReverseSimulation(ask types.Asset) (types.ReverseSimulationResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.reverseSimulate(e.Now(), ask)
}

// CumulativePrices reports the TWAP accumulators, advanced to now.
func (e *Engine) CumulativePrices() types.CumulativePricesResponse {
	e.mu.Lock()
	defer e.mu.Unlock()
	acc := e.pool.Accumulator.Clone()
	acc.Accumulate(e.Now(), e.pool.Price.LastPrices)
	resp := e.pool.CumulativePrices()
	resp.Price0Cumulative = acc.Price0Cumulative.String()
	resp.Price1Cumulative = acc.Price1Cumulative.String()
	resp.BlockTimeLast = acc.BlockTimeLast
	return resp
}

// Observe returns the SMA price (quote per base) secondsAgo in the past.
func (e *Engine) Observe(secondsAgo int64) (sdkmath.LegacyDec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.Now()
	ring := e.pool.Observations.Clone()
	ring.Flush(now)
	return ring.ObserveAt(now - secondsAgo)
}
