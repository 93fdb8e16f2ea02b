/*

Cumulative-price accumulators for the pool TWAP oracle.

Accumulators are 128-bit and advance by elapsed_seconds * price * 1e6 on every
state-mutating pool operation. Addition wraps at 2^128 by design: readers diff
two snapshots, so the absolute value is meaningless and guarding the wrap
would only break long-lived pools.

*/

package twap

import (
	"math/big"
	"math/bits"

	sdkmath "cosmossdk.io/math"
)

// Precision scales prices inside the accumulators.
const Precision = 1_000_000

// Uint128 is a wrapping 128-bit accumulator cell.
type Uint128 struct {
	Hi uint64 `json:"hi"`
	Lo uint64 `json:"lo"`
}

// WrappingAdd adds v modulo 2^128.
func (u Uint128) WrappingAdd(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}
}

// Sub returns u - v modulo 2^128, the delta a TWAP reader computes.
func (u Uint128) Sub(v Uint128) Uint128 {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, _ := bits.Sub64(u.Hi, v.Hi, borrow)
	return Uint128{Hi: hi, Lo: lo}
}

func (u Uint128) BigInt() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string {
	return u.BigInt().String()
}

// Uint128FromString parses a decimal string, reducing it mod 2^128. Used when
// restoring accumulators from a persisted snapshot.
func Uint128FromString(s string) (Uint128, bool) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok || i.Sign() < 0 {
		return Uint128{}, false
	}
	i.Mod(i, new(big.Int).Lsh(big.NewInt(1), 128))
	lo := new(big.Int).And(i, new(big.Int).SetUint64(^uint64(0))).Uint64()
	hi := new(big.Int).Rsh(i, 64).Uint64()
	return Uint128{Hi: hi, Lo: lo}, true
}

// uint128FromDec truncates a non-negative decimal and reduces it mod 2^128.
func uint128FromDec(d sdkmath.LegacyDec) Uint128 {
	i := d.TruncateInt().BigInt()
	i.Mod(i, new(big.Int).Lsh(big.NewInt(1), 128))
	lo := new(big.Int).And(i, new(big.Int).SetUint64(^uint64(0))).Uint64()
	hi := new(big.Int).Rsh(i, 64).Uint64()
	return Uint128{Hi: hi, Lo: lo}
}

// Accumulator carries the two ordered-pair cumulative prices.
type Accumulator struct {
	Price0Cumulative Uint128 `json:"price0_cumulative"` // asset0 -> asset1 leg, price of asset1 in asset0
	Price1Cumulative Uint128 `json:"price1_cumulative"` // asset1 -> asset0 leg, reciprocal
	BlockTimeLast    int64   `json:"block_time_last"`
}

// Accumulate advances both accumulators with the price that was in effect
// since the previous update. price is the last traded price of asset1 in
// units of asset0 and must be positive.
func (a *Accumulator) Accumulate(now int64, price sdkmath.LegacyDec) {
	elapsed := now - a.BlockTimeLast
	if elapsed <= 0 {
		return
	}
	a.BlockTimeLast = now
	if price.IsNil() || !price.IsPositive() {
		return
	}
	elapsedDec := sdkmath.LegacyNewDec(elapsed).MulInt64(Precision)
	a.Price0Cumulative = a.Price0Cumulative.WrappingAdd(uint128FromDec(elapsedDec.Mul(price)))
	a.Price1Cumulative = a.Price1Cumulative.WrappingAdd(uint128FromDec(elapsedDec.Quo(price)))
}

// Clone returns a copy; Uint128 cells are value types so this is shallow.
func (a *Accumulator) Clone() *Accumulator {
	c := *a
	return &c
}
