// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

// SavePoolParameters saves a new version of pool parameters for a pair.
func SavePoolParameters(params types.PoolParams, pairID string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE pool_parameters SET is_active = FALSE WHERE pair_id = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, pairID)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", pairID, err)
		}
	}

	stmt := `
        INSERT INTO pool_parameters (
            version, pair_id, is_active, activated_at, created_at,
            mid_fee, out_fee, fee_gamma,
            repeg_profit_threshold, min_price_scale_delta,
            ma_half_time, price_scale
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10,
            $11, $12
        ) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, pairID, makeActive, currentTime, currentTime,
		params.MidFee.String(), params.OutFee.String(), params.FeeGamma.String(),
		params.RepegProfitThreshold.String(), params.MinPriceScaleDelta.String(),
		params.MaHalfTime, params.PriceScale.String(),
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert pool parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("pair_id", pairID).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved pool parameters")
	return paramsID, nil
}

// LoadActivePoolParameters loads the currently active parameters for a pair,
// or nil when none were persisted yet.
func LoadActivePoolParameters(pairID string) (*types.PoolParams, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT mid_fee, out_fee, fee_gamma,
		       repeg_profit_threshold, min_price_scale_delta,
		       ma_half_time, price_scale
		FROM pool_parameters
		WHERE pair_id = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;
	`

	var (
		midFee, outFee, feeGamma       string
		repegThreshold, minScaleDelta  string
		maHalfTime                     int64
		priceScale                     string
	)
	err := DB.QueryRow(query, pairID).Scan(
		&midFee, &outFee, &feeGamma,
		&repegThreshold, &minScaleDelta,
		&maHalfTime, &priceScale,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active pool parameters for %s: %w", pairID, err)
	}

	params := types.PoolParams{MaHalfTime: maHalfTime}
	fields := []struct {
		dst *sdkmath.LegacyDec
		src string
		col string
	}{
		{&params.MidFee, midFee, "mid_fee"},
		{&params.OutFee, outFee, "out_fee"},
		{&params.FeeGamma, feeGamma, "fee_gamma"},
		{&params.RepegProfitThreshold, repegThreshold, "repeg_profit_threshold"},
		{&params.MinPriceScaleDelta, minScaleDelta, "min_price_scale_delta"},
		{&params.PriceScale, priceScale, "price_scale"},
	}
	for _, f := range fields {
		dec, err := sdkmath.LegacyNewDecFromStr(f.src)
		if err != nil {
			return nil, fmt.Errorf("malformed %s %q: %w", f.col, f.src, err)
		}
		*f.dst = dec
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("persisted parameters for %s are invalid: %w", pairID, err)
	}
	return &params, nil
}
