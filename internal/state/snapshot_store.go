// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

// PoolSnapshot is the persisted view of one pool's mutable state. The
// observation ring is a daemon-side cache and is rebuilt from trades after a
// restart, so it is not part of the snapshot.
type PoolSnapshot struct {
	PairID           string           `json:"pair_id"`
	TakenAt          time.Time        `json:"taken_at"`
	Balance0         string           `json:"balance0"`
	Balance1         string           `json:"balance1"`
	TotalLp          string           `json:"total_lp"`
	PriceState       types.PriceState `json:"price_state"`
	AmpGamma         types.AmpGamma   `json:"amp_gamma"`
	Price0Cumulative string           `json:"price0_cumulative"`
	Price1Cumulative string           `json:"price1_cumulative"`
	BlockTimeLast    int64            `json:"block_time_last"`
	LastRampStart    int64            `json:"last_ramp_start"`
	// OrderbookBalances is the sync controller's last_balances, nil when
	// mirroring is disabled.
	OrderbookBalances []string `json:"orderbook_balances,omitempty"`
}

// SavePoolSnapshot saves a pool snapshot to the database.
func SavePoolSnapshot(snapshot PoolSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	priceStateJSON, err := json.Marshal(snapshot.PriceState)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal price_state: %w", err)
	}
	ampGammaJSON, err := json.Marshal(snapshot.AmpGamma)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal amp_gamma: %w", err)
	}
	var orderbookJSON []byte
	if snapshot.OrderbookBalances != nil {
		orderbookJSON, err = json.Marshal(snapshot.OrderbookBalances)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal orderbook_balances: %w", err)
		}
	}

	query := `
		INSERT INTO pool_snapshots (
			pair_id, taken_at,
			balance0, balance1, total_lp,
			price_state, amp_gamma,
			price0_cumulative, price1_cumulative, block_time_last,
			last_ramp_start, orderbook_balances
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.PairID, snapshot.TakenAt,
		snapshot.Balance0, snapshot.Balance1, snapshot.TotalLp,
		priceStateJSON, ampGammaJSON,
		snapshot.Price0Cumulative, snapshot.Price1Cumulative, snapshot.BlockTimeLast,
		snapshot.LastRampStart, orderbookJSON,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save pool snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("pair_id", snapshot.PairID).
		Str("total_lp", snapshot.TotalLp).
		Msg("Pool snapshot saved to database")

	return snapshotID, nil
}

// LoadLatestPoolSnapshot loads the most recent snapshot for a pair, or nil
// when none exists yet.
func LoadLatestPoolSnapshot(pairID string) (*PoolSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT pair_id, taken_at, balance0, balance1, total_lp,
		       price_state, amp_gamma,
		       price0_cumulative, price1_cumulative, block_time_last,
		       last_ramp_start, orderbook_balances
		FROM pool_snapshots
		WHERE pair_id = $1
		ORDER BY taken_at DESC
		LIMIT 1;
	`

	var (
		snapshot       PoolSnapshot
		priceStateJSON []byte
		ampGammaJSON   []byte
		orderbookJSON  []byte
	)
	err := DB.QueryRow(query, pairID).Scan(
		&snapshot.PairID, &snapshot.TakenAt,
		&snapshot.Balance0, &snapshot.Balance1, &snapshot.TotalLp,
		&priceStateJSON, &ampGammaJSON,
		&snapshot.Price0Cumulative, &snapshot.Price1Cumulative, &snapshot.BlockTimeLast,
		&snapshot.LastRampStart, &orderbookJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pool snapshot for %s: %w", pairID, err)
	}

	if err := json.Unmarshal(priceStateJSON, &snapshot.PriceState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price_state: %w", err)
	}
	if err := json.Unmarshal(ampGammaJSON, &snapshot.AmpGamma); err != nil {
		return nil, fmt.Errorf("failed to unmarshal amp_gamma: %w", err)
	}
	if len(orderbookJSON) > 0 {
		if err := json.Unmarshal(orderbookJSON, &snapshot.OrderbookBalances); err != nil {
			return nil, fmt.Errorf("failed to unmarshal orderbook_balances: %w", err)
		}
	}
	return &snapshot, nil
}
