/*

This file manages the persistent per-pair orderbook-sync sequence counter.
The counter survives restarts so receipts stay monotonically ordered.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetCurrentSyncSequence retrieves the current sync sequence for a pair.
func GetCurrentSyncSequence(pairID string) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT current_sequence FROM sync_counter WHERE pair_id = $1;`

	var sequence int64
	err := DB.QueryRow(query, pairID).Scan(&sequence)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get sync sequence for %s: %w", pairID, err)
	}

	log.Debug().Str("pair_id", pairID).Int64("sequence", sequence).Msg("Retrieved sync sequence")
	return sequence, nil
}

// IncrementSyncSequence increments the counter and returns the new value.
func IncrementSyncSequence(pairID string) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	updateQuery := `
		INSERT INTO sync_counter (pair_id, current_sequence, updated_at)
		VALUES ($1, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (pair_id) DO UPDATE
		SET current_sequence = sync_counter.current_sequence + 1,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING current_sequence;`

	var sequence int64
	err := DB.QueryRow(updateQuery, pairID).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to increment sync sequence for %s: %w", pairID, err)
	}

	log.Debug().Str("pair_id", pairID).Int64("sequence", sequence).Msg("Incremented sync sequence")
	return sequence, nil
}
