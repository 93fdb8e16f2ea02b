package types

import (
	"errors"
	"fmt"
)

// Error taxonomy of the pool core. Every operation either commits fully or
// returns one of these (possibly wrapped); callers can rely on errors.Is.
var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrPairAlreadyExists       = errors.New("pair already exists")
	ErrAssetMismatch           = errors.New("asset does not belong to the pair")
	ErrInvalidAsset            = errors.New("invalid asset")
	ErrInsufficientPoolBalance = errors.New("insufficient pool balance")
	ErrInsufficientLpTokens    = errors.New("insufficient LP tokens")
	ErrMinimumLiquidityAmount  = errors.New("initial provide is below the minimum liquidity lock")
	ErrSwapAmountZero          = errors.New("swap amount must be positive")
	ErrEmptyPool               = errors.New("pool has no liquidity")
	ErrMaxSpreadAssertion      = errors.New("operation exceeds max spread limit")
	ErrAllowedSpreadAssertion  = errors.New("spread limit exceeds the allowed maximum")
	ErrNotConverging           = errors.New("newton iteration did not converge")
	ErrNoNeedToSync            = errors.New("pool balances match the last orderbook snapshot")
	ErrOrderTooSmall           = errors.New("order size below the configured minimum")
	ErrMigration               = errors.New("migration error")
	ErrMinReceiveAssertion     = errors.New("operation returns less than the requested minimum")
	ErrSlippageTolerance       = errors.New("operation exceeds the slippage tolerance")
	ErrInvalidPoolParams       = errors.New("invalid pool parameters")
	ErrAmpGammaOutOfBounds     = errors.New("amp or gamma outside the supported range")
	ErrRampTooSoon             = errors.New("previous ramp is too recent")
)

// WrapNotConverging annotates a solver failure with the operation it aborted.
func WrapNotConverging(op string, err error) error {
	return fmt.Errorf("%s aborted: %w", op, err)
}
