// ./internal/state/receipts_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

// SyncReceipt records one committed orderbook sync.
type SyncReceipt struct {
	SyncID       string                 `json:"sync_id"`
	PairID       string                 `json:"pair_id"`
	Sequence     int64                  `json:"sequence"`
	HadTrade     bool                   `json:"had_trade"`
	OfferIdx     *int                   `json:"offer_idx,omitempty"`
	OfferAmount  string                 `json:"offer_amount,omitempty"`
	AskAmount    string                 `json:"ask_amount,omitempty"`
	OrdersPlaced int                    `json:"orders_placed"`
	Intents      []types.TransferIntent `json:"intents,omitempty"`
}

// SaveSyncReceipt persists one sync receipt.
func SaveSyncReceipt(receipt SyncReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var intentsJSON []byte
	if len(receipt.Intents) > 0 {
		var err error
		intentsJSON, err = json.Marshal(receipt.Intents)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal intents: %w", err)
		}
	}

	query := `
		INSERT INTO sync_receipts (
			sync_id, pair_id, sequence, had_trade,
			offer_idx, offer_amount, ask_amount,
			orders_placed, intents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRow(
		query,
		receipt.SyncID, receipt.PairID, receipt.Sequence, receipt.HadTrade,
		receipt.OfferIdx, nullable(receipt.OfferAmount), nullable(receipt.AskAmount),
		receipt.OrdersPlaced, intentsJSON,
	).Scan(&receiptID)

	if err != nil {
		return 0, fmt.Errorf("failed to save sync receipt: %w", err)
	}

	log.Info().
		Int64("receipt_id", receiptID).
		Str("sync_id", receipt.SyncID).
		Int64("sequence", receipt.Sequence).
		Msg("Sync receipt saved to database")

	return receiptID, nil
}

// GetRecentSyncReceipts retrieves recent receipts for a pair, newest first.
func GetRecentSyncReceipts(pairID string, limit int) ([]SyncReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT sync_id, pair_id, sequence, had_trade,
		       offer_idx, offer_amount, ask_amount,
		       orders_placed, intents
		FROM sync_receipts
		WHERE pair_id = $1
		ORDER BY sequence DESC
		LIMIT $2;
	`

	rows, err := DB.Query(query, pairID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query sync receipts")
		return nil, fmt.Errorf("failed to query sync receipts: %w", err)
	}
	defer rows.Close()

	var receipts []SyncReceipt
	for rows.Next() {
		var (
			receipt     SyncReceipt
			offerAmount sql.NullString
			askAmount   sql.NullString
			intentsJSON []byte
		)
		err := rows.Scan(
			&receipt.SyncID, &receipt.PairID, &receipt.Sequence, &receipt.HadTrade,
			&receipt.OfferIdx, &offerAmount, &askAmount,
			&receipt.OrdersPlaced, &intentsJSON,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan sync receipt row")
			continue // Skip this row and continue with others
		}
		receipt.OfferAmount = offerAmount.String
		receipt.AskAmount = askAmount.String
		if len(intentsJSON) > 0 {
			if err := json.Unmarshal(intentsJSON, &receipt.Intents); err != nil {
				log.Error().Err(err).Str("sync_id", receipt.SyncID).Msg("Failed to unmarshal receipt intents")
			}
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
