package lending

import "math/big"

// optimalUtilization is the kink point of the two-slope rate curves, 0.8 in
// 1e9 fixed point. excessSpan is 1 - optimal, the width of the region above
// the kink.
var (
	optimalUtilization = big.NewInt(800_000_000)
	excessSpan         = big.NewInt(200_000_000)
)

// RateStrategy shapes how a reserve's borrow and liquidity rates react to
// utilisation. All rates are annualised 1e9 fixed point. The parameters are
// owner-settable per reserve; reads are unrestricted.
type RateStrategy struct {
	// BaseVariableBorrowRate is the variable rate floor at zero utilisation.
	BaseVariableBorrowRate *big.Int `json:"baseVariableBorrowRate" toml:"BaseVariableBorrowRate"`
	// MarketStableRate anchors the stable curve in place of the variable
	// base rate.
	MarketStableRate   *big.Int `json:"marketStableRate" toml:"MarketStableRate"`
	VariableRateSlope1 *big.Int `json:"variableRateSlope1" toml:"VariableRateSlope1"`
	VariableRateSlope2 *big.Int `json:"variableRateSlope2" toml:"VariableRateSlope2"`
	StableRateSlope1   *big.Int `json:"stableRateSlope1" toml:"StableRateSlope1"`
	StableRateSlope2   *big.Int `json:"stableRateSlope2" toml:"StableRateSlope2"`
}

// EnsureDefaults populates nil parameters with zero so persisted strategies
// are safe to evaluate.
func (s *RateStrategy) EnsureDefaults() {
	if s == nil {
		return
	}
	if s.BaseVariableBorrowRate == nil {
		s.BaseVariableBorrowRate = big.NewInt(0)
	}
	if s.MarketStableRate == nil {
		s.MarketStableRate = big.NewInt(0)
	}
	if s.VariableRateSlope1 == nil {
		s.VariableRateSlope1 = big.NewInt(0)
	}
	if s.VariableRateSlope2 == nil {
		s.VariableRateSlope2 = big.NewInt(0)
	}
	if s.StableRateSlope1 == nil {
		s.StableRateSlope1 = big.NewInt(0)
	}
	if s.StableRateSlope2 == nil {
		s.StableRateSlope2 = big.NewInt(0)
	}
}

// Clone returns a deep copy of the strategy.
func (s RateStrategy) Clone() RateStrategy {
	clone := RateStrategy{}
	if s.BaseVariableBorrowRate != nil {
		clone.BaseVariableBorrowRate = new(big.Int).Set(s.BaseVariableBorrowRate)
	}
	if s.MarketStableRate != nil {
		clone.MarketStableRate = new(big.Int).Set(s.MarketStableRate)
	}
	if s.VariableRateSlope1 != nil {
		clone.VariableRateSlope1 = new(big.Int).Set(s.VariableRateSlope1)
	}
	if s.VariableRateSlope2 != nil {
		clone.VariableRateSlope2 = new(big.Int).Set(s.VariableRateSlope2)
	}
	if s.StableRateSlope1 != nil {
		clone.StableRateSlope1 = new(big.Int).Set(s.StableRateSlope1)
	}
	if s.StableRateSlope2 != nil {
		clone.StableRateSlope2 = new(big.Int).Set(s.StableRateSlope2)
	}
	clone.EnsureDefaults()
	return clone
}

// DefaultRateStrategy provides a reasonable starting curve: 1% variable base,
// 4% market stable anchor, gentle slopes below the kink and steep ones above.
func DefaultRateStrategy() RateStrategy {
	return RateStrategy{
		BaseVariableBorrowRate: big.NewInt(10_000_000),
		MarketStableRate:       big.NewInt(40_000_000),
		VariableRateSlope1:     big.NewInt(70_000_000),
		VariableRateSlope2:     big.NewInt(1_000_000_000),
		StableRateSlope1:       big.NewInt(60_000_000),
		StableRateSlope2:       big.NewInt(1_000_000_000),
	}
}

// ReserveRates bundles the three outputs of a rate computation.
type ReserveRates struct {
	LiquidityRate      *big.Int
	StableBorrowRate   *big.Int
	VariableBorrowRate *big.Int
}

// Utilization returns totalBorrows / (availableLiquidity + totalBorrows) in
// 1e9 fixed point. A fully idle reserve has zero utilisation.
func Utilization(totalBorrows, availableLiquidity *big.Int) (*big.Int, error) {
	if totalBorrows == nil || totalBorrows.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if totalBorrows.Sign() < 0 || (availableLiquidity != nil && availableLiquidity.Sign() < 0) {
		return nil, errNegativeAmount
	}
	totalLiquidity := new(big.Int).Set(totalBorrows)
	if availableLiquidity != nil {
		totalLiquidity.Add(totalLiquidity, availableLiquidity)
	}
	return unitDiv(totalBorrows, totalLiquidity)
}

// CalculateRates evaluates the two-slope curves at the reserve's current
// utilisation and derives the liquidity rate from the overall borrow rate.
func (s RateStrategy) CalculateRates(availableLiquidity, totalBorrowsStable, totalBorrowsVariable, averageStableBorrowRate *big.Int) (ReserveRates, error) {
	s.EnsureDefaults()

	if totalBorrowsStable == nil {
		totalBorrowsStable = big.NewInt(0)
	}
	if totalBorrowsVariable == nil {
		totalBorrowsVariable = big.NewInt(0)
	}
	if averageStableBorrowRate == nil {
		averageStableBorrowRate = big.NewInt(0)
	}
	totalBorrows := new(big.Int).Add(totalBorrowsStable, totalBorrowsVariable)

	utilization, err := Utilization(totalBorrows, availableLiquidity)
	if err != nil {
		return ReserveRates{}, err
	}

	stableRate := new(big.Int).Set(s.MarketStableRate)
	variableRate := new(big.Int).Set(s.BaseVariableBorrowRate)

	if utilization.Cmp(optimalUtilization) < 0 {
		// Linear region below the kink: slope1 scaled by how far along
		// the [0, optimal] span utilisation sits.
		ratio, err := unitDiv(utilization, optimalUtilization)
		if err != nil {
			return ReserveRates{}, err
		}
		stableRate.Add(stableRate, unitMul(s.StableRateSlope1, ratio))
		variableRate.Add(variableRate, unitMul(s.VariableRateSlope1, ratio))
	} else {
		excess := new(big.Int).Sub(utilization, optimalUtilization)
		excessRatio, err := unitDiv(excess, excessSpan)
		if err != nil {
			return ReserveRates{}, err
		}
		stableSlopes := new(big.Int).Add(s.StableRateSlope1, s.StableRateSlope2)
		variableSlopes := new(big.Int).Add(s.VariableRateSlope1, s.VariableRateSlope2)
		stableRate.Add(stableRate, unitMul(stableSlopes, excessRatio))
		variableRate.Add(variableRate, unitMul(variableSlopes, excessRatio))
	}

	liquidityRate := big.NewInt(0)
	if totalBorrows.Sign() > 0 {
		// Overall borrow rate is the debt-weighted blend of the variable
		// rate and the average locked stable rate.
		weighted := new(big.Int).Mul(totalBorrowsVariable, variableRate)
		weighted.Add(weighted, new(big.Int).Mul(totalBorrowsStable, averageStableBorrowRate))
		overallBorrowRate := weighted.Quo(weighted, totalBorrows)
		liquidityRate = unitMul(overallBorrowRate, utilization)
	}

	return ReserveRates{
		LiquidityRate:      liquidityRate,
		StableBorrowRate:   stableRate,
		VariableBorrowRate: variableRate,
	}, nil
}
