package lending

import "math/big"

// accrueInterest rolls both cumulative indexes forward to now by compounding
// the current rates over the elapsed seconds. Calling it twice at the same
// instant is a no-op, so every state-mutating entrypoint can accrue
// unconditionally before touching balances.
func (r *Reserve) accrueInterest(now uint64) {
	if r == nil {
		return
	}
	r.EnsureDefaults()
	if now <= r.LastUpdateTimestamp {
		return
	}
	elapsed := now - r.LastUpdateTimestamp

	if r.CurrentLiquidityRate.Sign() > 0 {
		growth := compoundedInterest(r.CurrentLiquidityRate, elapsed)
		r.LiquidityCumulativeIndex = unitMul(r.LiquidityCumulativeIndex, growth)
	}
	if r.CurrentVariableBorrowRate.Sign() > 0 {
		growth := compoundedInterest(r.CurrentVariableBorrowRate, elapsed)
		r.VariableBorrowCumulativeIndex = unitMul(r.VariableBorrowCumulativeIndex, growth)
	}
	r.LastUpdateTimestamp = now
}

// NormalizedIncome projects the liquidity cumulative index to now without
// persisting anything. The receipt token uses it to rebase principal
// balances.
func (r *Reserve) NormalizedIncome(now uint64) *big.Int {
	if r == nil {
		return OneUnit()
	}
	r.EnsureDefaults()
	if now <= r.LastUpdateTimestamp || r.CurrentLiquidityRate.Sign() == 0 {
		return new(big.Int).Set(r.LiquidityCumulativeIndex)
	}
	growth := compoundedInterest(r.CurrentLiquidityRate, now-r.LastUpdateTimestamp)
	return unitMul(r.LiquidityCumulativeIndex, growth)
}

// normalizedVariableDebt is the borrow-side twin of NormalizedIncome: the
// variable cumulative index projected to now.
func (r *Reserve) normalizedVariableDebt(now uint64) *big.Int {
	if r == nil {
		return OneUnit()
	}
	r.EnsureDefaults()
	if now <= r.LastUpdateTimestamp || r.CurrentVariableBorrowRate.Sign() == 0 {
		return new(big.Int).Set(r.VariableBorrowCumulativeIndex)
	}
	growth := compoundedInterest(r.CurrentVariableBorrowRate, now-r.LastUpdateTimestamp)
	return unitMul(r.VariableBorrowCumulativeIndex, growth)
}

// refreshRates recomputes the reserve's rates against the strategy using the
// supplied post-mutation available liquidity.
func (r *Reserve) refreshRates(availableLiquidity *big.Int) error {
	if r == nil {
		return errReserveNotFound
	}
	r.EnsureDefaults()
	rates, err := r.Strategy.CalculateRates(availableLiquidity, r.TotalBorrowsStable, r.TotalBorrowsVariable, r.CurrentAverageStableBorrowRate)
	if err != nil {
		return err
	}
	r.CurrentLiquidityRate = rates.LiquidityRate
	r.CurrentStableBorrowRate = rates.StableBorrowRate
	r.CurrentVariableBorrowRate = rates.VariableBorrowRate
	return nil
}

// increaseBorrows adds newly drawn (or freshly compounded) debt to the
// reserve totals. Stable draws fold the borrower's locked rate into the
// tracked average.
func (r *Reserve) increaseBorrows(mode RateMode, amount, rate *big.Int) {
	if r == nil || amount == nil || amount.Sign() == 0 {
		return
	}
	r.EnsureDefaults()
	switch mode {
	case RateModeStable:
		oldTotal := new(big.Int).Set(r.TotalBorrowsStable)
		newTotal := new(big.Int).Add(oldTotal, amount)
		weighted := new(big.Int).Mul(oldTotal, r.CurrentAverageStableBorrowRate)
		if rate != nil {
			weighted.Add(weighted, new(big.Int).Mul(amount, rate))
		}
		r.CurrentAverageStableBorrowRate = weighted.Quo(weighted, newTotal)
		r.TotalBorrowsStable = newTotal
	case RateModeVariable:
		r.TotalBorrowsVariable = new(big.Int).Add(r.TotalBorrowsVariable, amount)
	}
}

// decreaseBorrows removes repaid debt from the reserve totals, unwinding the
// stable average when the repayment was stable-mode.
func (r *Reserve) decreaseBorrows(mode RateMode, amount, rate *big.Int) {
	if r == nil || amount == nil || amount.Sign() == 0 {
		return
	}
	r.EnsureDefaults()
	switch mode {
	case RateModeStable:
		newTotal := new(big.Int).Sub(r.TotalBorrowsStable, amount)
		if newTotal.Sign() <= 0 {
			r.TotalBorrowsStable = big.NewInt(0)
			r.CurrentAverageStableBorrowRate = big.NewInt(0)
			return
		}
		weighted := new(big.Int).Mul(r.TotalBorrowsStable, r.CurrentAverageStableBorrowRate)
		if rate != nil {
			weighted.Sub(weighted, new(big.Int).Mul(amount, rate))
		}
		if weighted.Sign() < 0 {
			weighted.SetInt64(0)
		}
		r.CurrentAverageStableBorrowRate = weighted.Quo(weighted, newTotal)
		r.TotalBorrowsStable = newTotal
	case RateModeVariable:
		newTotal := new(big.Int).Sub(r.TotalBorrowsVariable, amount)
		if newTotal.Sign() < 0 {
			newTotal.SetInt64(0)
		}
		r.TotalBorrowsVariable = newTotal
	}
}
