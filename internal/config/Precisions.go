/*

This file contains the default decimal exponents for known denominations.

The factory owns the authoritative precision registry on chain. This map seeds
pools instantiated from configuration when no registry entry is available.

If a denom doesn't have an entry here instantiation fails, so keep it up to
date for every pair this daemon is expected to manage.

*/

package config

import (
	"github.com/astrodex-labs/pcl-core/internal/types"
)

var (
	DefaultPrecisions = types.StaticPrecisions{
		"uatom":  6,
		"uosmo":  6,
		"untrn":  6,
		"utia":   6,
		"uusdc":  6,
		"uusdt":  6,
		"inj":    18,
		"wbtc":   8,
		"weth":   18,

		"ubase":  6, // Integration test pairs
		"uquote": 6,
	}
)
