package lending

import (
	"math/big"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
)

// healthFactorLiquidationThreshold is 1.0 in 1e9 fixed point: bounded health
// factors at or below this value gate borrows and withdrawals.
var healthFactorLiquidationThreshold = big.NewInt(1_000_000_000)

// HealthFactor is the distance of a position from liquidation. A position
// with no debt carries no risk at all, which is represented explicitly as an
// unbounded value rather than a numeric sentinel.
type HealthFactor struct {
	bounded bool
	value   *big.Int
}

// UnboundedHealthFactor marks a debt-free position.
func UnboundedHealthFactor() HealthFactor {
	return HealthFactor{}
}

// BoundedHealthFactor wraps a concrete 1e9 fixed-point ratio.
func BoundedHealthFactor(value *big.Int) HealthFactor {
	if value == nil {
		value = big.NewInt(0)
	}
	return HealthFactor{bounded: true, value: new(big.Int).Set(value)}
}

// Unbounded reports whether the position carries no debt.
func (h HealthFactor) Unbounded() bool {
	return !h.bounded
}

// Value returns the bounded ratio, or nil for an unbounded factor.
func (h HealthFactor) Value() *big.Int {
	if !h.bounded {
		return nil
	}
	return new(big.Int).Set(h.value)
}

// BelowThreshold reports whether the factor has crossed 1.0; an unbounded
// factor never does.
func (h HealthFactor) BelowThreshold() bool {
	return h.bounded && h.value.Cmp(healthFactorLiquidationThreshold) < 0
}

// atOrBelowThreshold is the stricter gate used when simulating withdrawals.
func (h HealthFactor) atOrBelowThreshold() bool {
	return h.bounded && h.value.Cmp(healthFactorLiquidationThreshold) <= 0
}

// calculateHealthFactor computes
// (collateralValue * liquidationThreshold / 100) / (borrowValue + feesValue)
// in 1e9 fixed point. Zero debt yields the unbounded variant.
func calculateHealthFactor(collateralValue, borrowValue, feesValue, liquidationThreshold *big.Int) (HealthFactor, error) {
	if borrowValue == nil || borrowValue.Sign() == 0 {
		return UnboundedHealthFactor(), nil
	}
	adjusted := percentMul(collateralValue, liquidationThreshold)
	denominator := new(big.Int).Set(borrowValue)
	if feesValue != nil {
		denominator.Add(denominator, feesValue)
	}
	ratio, err := unitDiv(adjusted, denominator)
	if err != nil {
		return HealthFactor{}, err
	}
	return BoundedHealthFactor(ratio), nil
}

// UserGlobalData aggregates a user's position across every registered
// reserve. All value figures share the oracle's 1e9 fixed-point pricing
// unit; the LTV and threshold outputs are integer percentages.
type UserGlobalData struct {
	TotalLiquidityValue         *big.Int
	TotalCollateralValue        *big.Int
	TotalBorrowValue            *big.Int
	TotalFeesValue              *big.Int
	CurrentLTV                  *big.Int
	CurrentLiquidationThreshold *big.Int
	HealthFactor                HealthFactor
}

// CalculateUserGlobalData walks all registered reserves, prices the user's
// deposit and debt in each, and folds them into the collateral, borrow and
// health-factor figures that gate every state change.
func (e *Engine) CalculateUserGlobalData(user crypto.Address) (*UserGlobalData, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.oracle == nil {
		return nil, errNilOracle
	}

	data := &UserGlobalData{
		TotalLiquidityValue:         big.NewInt(0),
		TotalCollateralValue:        big.NewInt(0),
		TotalBorrowValue:            big.NewInt(0),
		TotalFeesValue:              big.NewInt(0),
		CurrentLTV:                  big.NewInt(0),
		CurrentLiquidationThreshold: big.NewInt(0),
	}
	weightedLTV := big.NewInt(0)
	weightedThreshold := big.NewInt(0)

	ids, err := e.state.ReserveIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		reserve, err := e.reserve(id)
		if err != nil {
			return nil, err
		}
		token, err := e.reserveToken(id)
		if err != nil {
			return nil, err
		}
		depositBalance, err := token.BalanceOf(user)
		if err != nil {
			return nil, err
		}
		position, err := e.ensureUserReserve(id, user)
		if err != nil {
			return nil, err
		}
		if depositBalance.Sign() == 0 && !position.HasOpenBorrow() {
			continue
		}

		price, err := e.oracle.Price(id)
		if err != nil {
			return nil, err
		}
		unit := reserve.Unit()

		if depositBalance.Sign() > 0 {
			liquidityValue := new(big.Int).Mul(price, depositBalance)
			liquidityValue.Quo(liquidityValue, unit)
			data.TotalLiquidityValue.Add(data.TotalLiquidityValue, liquidityValue)

			if reserve.UsableAsCollateral() && position.UseAsCollateral {
				data.TotalCollateralValue.Add(data.TotalCollateralValue, liquidityValue)
				weightedLTV.Add(weightedLTV, new(big.Int).Mul(liquidityValue, reserve.BaseLTV))
				weightedThreshold.Add(weightedThreshold, new(big.Int).Mul(liquidityValue, reserve.LiquidationThreshold))
			}
		}

		if position.HasOpenBorrow() {
			debt, err := compoundedBorrowBalance(position, reserve, e.timestamp)
			if err != nil {
				return nil, err
			}
			borrowValue := new(big.Int).Mul(price, debt.Compounded)
			borrowValue.Quo(borrowValue, unit)
			data.TotalBorrowValue.Add(data.TotalBorrowValue, borrowValue)

			feesValue := new(big.Int).Mul(price, position.OriginationFee)
			feesValue.Quo(feesValue, unit)
			data.TotalFeesValue.Add(data.TotalFeesValue, feesValue)
		}
	}

	if data.TotalCollateralValue.Sign() > 0 {
		data.CurrentLTV = new(big.Int).Quo(weightedLTV, data.TotalCollateralValue)
		data.CurrentLiquidationThreshold = new(big.Int).Quo(weightedThreshold, data.TotalCollateralValue)
	}

	healthFactor, err := calculateHealthFactor(data.TotalCollateralValue, data.TotalBorrowValue, data.TotalFeesValue, data.CurrentLiquidationThreshold)
	if err != nil {
		return nil, err
	}
	data.HealthFactor = healthFactor
	return data, nil
}

// BalanceDecreaseAllowed simulates removing amount of the user's deposit in
// the given reserve and reports whether the remaining position stays
// healthy. Withdrawals from assets not backing any debt are always allowed.
func (e *Engine) BalanceDecreaseAllowed(reserveID string, user crypto.Address, amount *big.Int) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return false, errInvalidAmount
	}
	reserve, err := e.reserve(reserveID)
	if err != nil {
		return false, err
	}
	position, err := e.ensureUserReserve(reserveID, user)
	if err != nil {
		return false, err
	}
	if !reserve.UsableAsCollateral() || !position.UseAsCollateral {
		return true, nil
	}

	data, err := e.CalculateUserGlobalData(user)
	if err != nil {
		return false, err
	}
	if data.TotalBorrowValue.Sign() == 0 {
		return true, nil
	}

	price, err := e.oracle.Price(reserveID)
	if err != nil {
		return false, err
	}
	amountValue := new(big.Int).Mul(price, amount)
	amountValue.Quo(amountValue, reserve.Unit())

	collateralAfter := new(big.Int).Sub(data.TotalCollateralValue, amountValue)
	if collateralAfter.Sign() <= 0 {
		// Debt is outstanding; the position may not be stripped bare.
		return false, nil
	}

	// Rebuild the weighted liquidation threshold without the withdrawn
	// collateral slice.
	weightedBefore := new(big.Int).Mul(data.TotalCollateralValue, data.CurrentLiquidationThreshold)
	weightedRemoved := new(big.Int).Mul(amountValue, reserve.LiquidationThreshold)
	thresholdAfter := new(big.Int).Sub(weightedBefore, weightedRemoved)
	if thresholdAfter.Sign() < 0 {
		thresholdAfter.SetInt64(0)
	}
	thresholdAfter.Quo(thresholdAfter, collateralAfter)

	healthFactor, err := calculateHealthFactor(collateralAfter, data.TotalBorrowValue, data.TotalFeesValue, thresholdAfter)
	if err != nil {
		return false, err
	}
	return !healthFactor.atOrBelowThreshold(), nil
}

// calculateCollateralNeeded returns the collateral value required to support
// the existing debt plus a prospective borrow of amount with its fee, at the
// user's current loan-to-value.
func (e *Engine) calculateCollateralNeeded(reserve *Reserve, amount, fee, currentBorrowValue, currentFeesValue, currentLTV *big.Int) (*big.Int, error) {
	price, err := e.oracle.Price(reserve.ID)
	if err != nil {
		return nil, err
	}
	requested := new(big.Int).Add(amount, fee)
	requestedValue := new(big.Int).Mul(price, requested)
	requestedValue.Quo(requestedValue, reserve.Unit())

	total := new(big.Int).Add(currentBorrowValue, currentFeesValue)
	total.Add(total, requestedValue)
	return percentDiv(total, currentLTV)
}

// AvailableBorrows returns the value a user could still draw given their
// collateral, outstanding debt and fees, net of the origination fee the new
// borrow itself would incur. The floor is zero.
func (e *Engine) AvailableBorrows(collateralValue, borrowValue, feesValue, ltv *big.Int) (*big.Int, error) {
	if e == nil || e.feeProvider == nil {
		return nil, errNilFeeProvider
	}
	raw := percentMul(collateralValue, ltv)
	if borrowValue != nil && raw.Cmp(borrowValue) < 0 {
		return big.NewInt(0), nil
	}
	available := new(big.Int).Set(raw)
	if borrowValue != nil {
		available.Sub(available, borrowValue)
	}
	if feesValue != nil {
		available.Sub(available, feesValue)
	}
	if available.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	fee, err := e.feeProvider.CalculateLoanOriginationFee(available)
	if err != nil {
		return nil, err
	}
	available.Sub(available, fee)
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	return available, nil
}
