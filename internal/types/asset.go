/*

Asset identification and amounts for the PCL pool core.

A pool holds exactly two assets. Asset 0 is the base side, asset 1 the quote
side; the quote side is the one multiplied by the price scale when balances are
lifted into internal (symmetric) units.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// PoolAssetsNum is fixed for the concentrated pool type.
const PoolAssetsNum = 2

// AssetInfo identifies one of the two pool assets. Native bank denoms and
// fungible-token contract addresses share the same representation; the host
// transfer layer is what distinguishes them.
type AssetInfo struct {
	Denom  string `json:"denom"`
	Native bool   `json:"native"`
}

func NativeAsset(denom string) AssetInfo {
	return AssetInfo{Denom: denom, Native: true}
}

func TokenAsset(contract string) AssetInfo {
	return AssetInfo{Denom: contract, Native: false}
}

func (a AssetInfo) Equal(other AssetInfo) bool {
	return a.Denom == other.Denom && a.Native == other.Native
}

func (a AssetInfo) String() string {
	return a.Denom
}

// Asset is an amount of a specific pool asset in native (on-chain) units.
type Asset struct {
	Info   AssetInfo   `json:"info"`
	Amount sdkmath.Int `json:"amount"`
}

func NewAsset(info AssetInfo, amount sdkmath.Int) Asset {
	return Asset{Info: info, Amount: amount}
}

func (a Asset) Coin() sdk.Coin {
	return sdk.Coin{Denom: a.Info.Denom, Amount: a.Amount}
}

func (a Asset) String() string {
	return fmt.Sprintf("%s%s", a.Amount.String(), a.Info.Denom)
}

// TransferIntent is an outbound transfer the host must execute when the
// operation commits. The core never moves funds itself; it only emits intents.
type TransferIntent struct {
	Recipient string   `json:"recipient"`
	Coin      sdk.Coin `json:"coin"`
	// Purpose tags the intent for receipts: "return", "refund", "maker_fee",
	// "share_fee", "withdraw".
	Purpose string `json:"purpose"`
}

// PrecisionRegistry resolves an asset to its decimal exponent. The factory
// owns the authoritative registry; the core treats it as a pure lookup.
type PrecisionRegistry interface {
	Precision(info AssetInfo) (uint8, error)
}

// StaticPrecisions is a PrecisionRegistry backed by a fixed map, used at pool
// instantiation and in tests.
type StaticPrecisions map[string]uint8

func (s StaticPrecisions) Precision(info AssetInfo) (uint8, error) {
	p, ok := s[info.Denom]
	if !ok {
		return 0, fmt.Errorf("%w: no precision registered for %s", ErrInvalidAsset, info.Denom)
	}
	return p, nil
}
