package lending

import "math/big"

// All rates and cumulative indexes use 1e9-scaled fixed point where oneUnit
// represents 1.0. Amounts stay in raw asset units. Division truncates toward
// zero; every accounting quantity is non-negative, so truncation is a floor.
var (
	oneUnit = big.NewInt(1_000_000_000)
	hundred = big.NewInt(100)
)

// SecondsPerYear converts annualised rates into per-second compounding steps.
const SecondsPerYear = 31_536_000

// OneUnit returns the fixed-point representation of 1.0.
func OneUnit() *big.Int {
	return new(big.Int).Set(oneUnit)
}

// unitMul multiplies two fixed-point values: a * b / 1e9.
func unitMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, oneUnit)
}

// unitDiv divides two fixed-point values: a * 1e9 / b.
func unitDiv(a, b *big.Int) (*big.Int, error) {
	if b == nil || b.Sign() == 0 {
		return nil, errDivisionByZero
	}
	if a == nil {
		return big.NewInt(0), nil
	}
	numerator := new(big.Int).Mul(a, oneUnit)
	return numerator.Quo(numerator, b), nil
}

// percentMul applies an integer percentage: amount * pct / 100.
func percentMul(amount, pct *big.Int) *big.Int {
	if amount == nil || pct == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(amount, pct)
	return product.Quo(product, hundred)
}

// percentDiv undoes an integer percentage: amount * 100 / pct.
func percentDiv(amount, pct *big.Int) (*big.Int, error) {
	if pct == nil || pct.Sign() == 0 {
		return nil, errDivisionByZero
	}
	if amount == nil {
		return big.NewInt(0), nil
	}
	numerator := new(big.Int).Mul(amount, hundred)
	return numerator.Quo(numerator, pct), nil
}

// compoundedInterest compounds an annualised fixed-point rate over the given
// number of elapsed seconds and returns the growth factor in 1e9 fixed point.
// The per-second rate is compounded with exponentiation by squaring, which
// keeps the loop logarithmic in the elapsed time and avoids the precision
// drift of a floating-point power function.
func compoundedInterest(annualRate *big.Int, elapsed uint64) *big.Int {
	if annualRate == nil || annualRate.Sign() == 0 || elapsed == 0 {
		return OneUnit()
	}
	ratePerSecond := new(big.Int).Quo(annualRate, big.NewInt(SecondsPerYear))

	x := new(big.Int).Add(oneUnit, ratePerSecond)
	z := OneUnit()
	if elapsed%2 == 1 {
		z.Set(x)
	}
	for n := elapsed / 2; n != 0; n /= 2 {
		x = unitMul(x, x)
		if n%2 == 1 {
			z = unitMul(z, x)
		}
	}
	return z
}

// minBig returns the smaller of two non-nil big integers as a fresh copy.
func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
