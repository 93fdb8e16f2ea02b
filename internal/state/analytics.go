package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SyncStats represents aggregated orderbook-sync statistics for a pair.
type SyncStats struct {
	TotalSyncs        int    `json:"total_syncs"`
	TradeSyncs        int    `json:"trade_syncs"`
	TotalOrdersPlaced int    `json:"total_orders_placed"`
	LastSyncAt        string `json:"last_sync_at,omitempty"`
}

// GetSyncStats aggregates the sync receipt history for a pair.
func GetSyncStats(pairID string) (SyncStats, error) {
	if DB == nil {
		return SyncStats{}, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE had_trade),
		       COALESCE(SUM(orders_placed), 0),
		       COALESCE(MAX(created_at)::TEXT, '')
		FROM sync_receipts
		WHERE pair_id = $1;
	`

	var stats SyncStats
	err := DB.QueryRow(query, pairID).Scan(
		&stats.TotalSyncs, &stats.TradeSyncs, &stats.TotalOrdersPlaced, &stats.LastSyncAt,
	)
	if err != nil {
		return SyncStats{}, fmt.Errorf("failed to aggregate sync stats for %s: %w", pairID, err)
	}
	return stats, nil
}

// GetSnapshotHistory retrieves recent pool snapshots, newest first.
func GetSnapshotHistory(pairID string, limit int) ([]PoolSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT pair_id, taken_at, balance0, balance1, total_lp,
		       price_state, amp_gamma,
		       price0_cumulative, price1_cumulative, block_time_last,
		       last_ramp_start, orderbook_balances
		FROM pool_snapshots
		WHERE pair_id = $1
		ORDER BY taken_at DESC
		LIMIT $2;
	`

	rows, err := DB.Query(query, pairID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query snapshot history")
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	var snapshots []PoolSnapshot
	for rows.Next() {
		var (
			snapshot       PoolSnapshot
			priceStateJSON []byte
			ampGammaJSON   []byte
			orderbookJSON  []byte
		)
		err := rows.Scan(
			&snapshot.PairID, &snapshot.TakenAt,
			&snapshot.Balance0, &snapshot.Balance1, &snapshot.TotalLp,
			&priceStateJSON, &ampGammaJSON,
			&snapshot.Price0Cumulative, &snapshot.Price1Cumulative, &snapshot.BlockTimeLast,
			&snapshot.LastRampStart, &orderbookJSON,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan snapshot row")
			continue // Skip this row and continue with others
		}
		if err := json.Unmarshal(priceStateJSON, &snapshot.PriceState); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal price_state")
			continue
		}
		if err := json.Unmarshal(ampGammaJSON, &snapshot.AmpGamma); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal amp_gamma")
			continue
		}
		if len(orderbookJSON) > 0 {
			if err := json.Unmarshal(orderbookJSON, &snapshot.OrderbookBalances); err != nil {
				log.Error().Err(err).Msg("Failed to unmarshal orderbook_balances")
			}
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// CountSnapshots returns the number of persisted snapshots for a pair.
func CountSnapshots(pairID string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	var count int
	err := DB.QueryRow(`SELECT COUNT(*) FROM pool_snapshots WHERE pair_id = $1;`, pairID).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to count snapshots for %s: %w", pairID, err)
	}
	return count, nil
}
