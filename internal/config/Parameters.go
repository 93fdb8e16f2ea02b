/*

This file contains the default pool parameters.

These values are used if no active parameters are found in the database during
initialization. They match the reference configuration for a volatile/stable
pair and are safe starting points for mainnet pools.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/astrodex-labs/pcl-core/internal/types"
)

// DefaultPoolParams provides a baseline parameter set for a concentrated pool.
var DefaultPoolParams = types.PoolParams{
	MidFee: sdkmath.LegacyNewDecWithPrec(26, 4), // 0.0026
	// Charged while the pool is balanced; matches the usual orderbook taker fee.

	OutFee: sdkmath.LegacyNewDecWithPrec(45, 4), // 0.0045
	// Charged at extreme imbalance. Must stay above MidFee.

	FeeGamma: sdkmath.LegacyNewDecWithPrec(2, 4), // 0.0002
	// Controls how fast the fee moves from MidFee to OutFee as the pool skews.

	RepegProfitThreshold: sdkmath.LegacyNewDecWithPrec(1, 8), // 1e-8
	// A repeg may consume at most this much accumulated virtual-price profit.

	MinPriceScaleDelta: sdkmath.LegacyNewDecWithPrec(5, 6), // 0.000005
	// Oracle drift below this fraction of price_scale never triggers a repeg.

	MaHalfTime: 600, // seconds
	// EMA half life of the internal oracle. 10 minutes tracks a liquid market
	// without letting one block of trades drag the oracle.

	PriceScale: sdkmath.LegacyOneDec(),
	// Initial quote-per-base price; instantiation overrides this per pair.
}

// DefaultAmp and DefaultGamma shape the initial curve.
var (
	DefaultAmp   = sdkmath.LegacyNewDec(40)
	DefaultGamma = sdkmath.LegacyNewDecWithPrec(145, 6) // 0.000145
)

// DefaultObservationCapacity sizes the trade observation ring.
const DefaultObservationCapacity = 3000

// DefaultMinTradesToAvg gates orderbook mirroring until this many trades.
const DefaultMinTradesToAvg = 50
