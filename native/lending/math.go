package lending

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	ray         = mustBigInt("1000000000000000000000000000") // 1e27 fixed-point base
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// sharesDown converts an asset amount into shares rounding down. Used when
// crediting shares so the holder never receives more claim than they paid for.
func sharesDown(amount, index *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, ray)
	return scaled.Quo(scaled, index)
}

// sharesUp converts a target asset amount into shares rounding up. Used when
// burning or minting a liability so the position never covers fewer assets than
// the amount that actually moved.
func sharesUp(amount, index *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, ray)
	scaled.Add(scaled, new(big.Int).Sub(index, big.NewInt(1)))
	return scaled.Quo(scaled, index)
}

// assetsFromShares converts shares back into an asset amount rounding down.
func assetsFromShares(shares, index *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(shares, index)
	return scaled.Quo(scaled, ray)
}

// indexFactor returns RAY + rate*elapsed, the multiplier applied to an index
// over the elapsed period. Rates are per-second values scaled by RAY.
func indexFactor(rate *big.Int, elapsed uint64) *big.Int {
	if rate == nil || rate.Sign() <= 0 || elapsed == 0 {
		return new(big.Int).Set(ray)
	}
	growth := new(big.Int).Mul(rate, new(big.Int).SetUint64(elapsed))
	return growth.Add(growth, ray)
}

// rayMul multiplies a by b/RAY rounding down.
func rayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, ray)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
