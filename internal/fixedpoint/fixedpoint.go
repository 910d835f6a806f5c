package fixedpoint

import (
	"math/big"
	"sync"
)

// All engine arithmetic is integer fixed-point with floor (truncating)
// division. Token amounts and USD values use 18 decimals (wad); the price
// feed uses 8 decimals and is normalized to wad with a fixed x1e10 factor.
var (
	Wad                     = big.NewInt(1e18)
	FeedPrecision           = big.NewInt(1e8)
	AdditionalFeedPrecision = big.NewInt(1e10)

	// MaxUint256 is the sentinel health factor for debt-free positions.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// intPool recycles big.Int intermediates on the hot valuation path.
var intPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return intPool.Get().(*big.Int)
}

func putInt(v *big.Int) {
	v.SetInt64(0)
	intPool.Put(v)
}

// Mul returns a*b in a fresh big.Int.
func Mul(a, b *big.Int) *big.Int {
	return new(big.Int).Mul(a, b)
}

// Div returns a/b with floor semantics for non-negative operands.
// big.Int.Quo truncates toward zero, which is floor for the non-negative
// values the engine divides; callers must check signs before dividing.
func Div(a, b *big.Int) *big.Int {
	return new(big.Int).Quo(a, b)
}

// MulDiv returns a*b/den (floor) without allocating the intermediate product
// on the caller side.
func MulDiv(a, b, den *big.Int) *big.Int {
	tmp := getInt()
	tmp.Mul(a, b)
	result := new(big.Int).Quo(tmp, den)
	putInt(tmp)
	return result
}

// NormalizePrice converts an 8-decimal feed price to a wad USD value per
// whole unit of the asset.
func NormalizePrice(price int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(price), AdditionalFeedPrecision)
}

// UsdValue returns the wad USD value of a wad token amount at an 8-decimal
// feed price: amount * (price * 1e10) / 1e18.
func UsdValue(amount *big.Int, price int64) *big.Int {
	norm := NormalizePrice(price)
	result := MulDiv(amount, norm, Wad)
	return result
}

// TokenAmountFromUsd converts a wad USD value back to a wad token amount at
// an 8-decimal feed price: usd * 1e18 / (price * 1e10).
func TokenAmountFromUsd(usd *big.Int, price int64) *big.Int {
	norm := NormalizePrice(price)
	return MulDiv(usd, Wad, norm)
}

// PctMul returns value * pct / 100 (floor).
func PctMul(value *big.Int, pct uint64) *big.Int {
	return MulDiv(value, new(big.Int).SetUint64(pct), big.NewInt(100))
}

// PctWad returns pct as a wad fraction: pct * 1e18 / 100.
func PctWad(pct uint64) *big.Int {
	return MulDiv(new(big.Int).SetUint64(pct), Wad, big.NewInt(100))
}

// BpsMul returns value * bps / 10000 (floor).
func BpsMul(value *big.Int, bps uint64) *big.Int {
	return MulDiv(value, new(big.Int).SetUint64(bps), big.NewInt(10_000))
}

// Min returns the smaller of a and b as a fresh big.Int.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Clone returns a defensive copy; nil maps to zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
