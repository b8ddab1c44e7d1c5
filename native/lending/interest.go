package lending

import "math/big"

const secondsPerYear = 31_536_000

var (
	basisPoints = big.NewInt(10_000)
	unit        = mustBigInt("1000000000000000000") // 1e18 fixed-point scale
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// accruedInterest computes simple interest on the principal at a fixed annual
// rate over the elapsed seconds:
//
//	principal * rateBps * elapsed / (secondsPerYear * 10_000)
//
// Division is floor division. Fractions below the smallest unit are dropped,
// so the result never exceeds the exact accrual.
func accruedInterest(principal *big.Int, rateBps uint64, elapsed int64) *big.Int {
	if principal == nil || principal.Sign() == 0 || rateBps == 0 || elapsed <= 0 {
		return big.NewInt(0)
	}
	interest := new(big.Int).Mul(principal, new(big.Int).SetUint64(rateBps))
	interest.Mul(interest, big.NewInt(elapsed))
	denom := new(big.Int).Mul(big.NewInt(secondsPerYear), basisPoints)
	return interest.Quo(interest, denom)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
