package lending

import (
	"math/big"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
)

// BorrowBalance is the projection of a position's debt at a point in time.
type BorrowBalance struct {
	// Principal is the recorded balance at the last position touch.
	Principal *big.Int
	// Compounded is the principal grown by the interest accrued since.
	Compounded *big.Int
	// Increase is Compounded - Principal.
	Increase *big.Int
}

// compoundedBorrowBalance projects the position's debt to now. Variable-mode
// debt rebases by the ratio of the current to the snapshotted cumulative
// index; stable-mode debt compounds the locked rate over the elapsed time
// with the same squaring algorithm the reserve indexes use.
func compoundedBorrowBalance(u *UserReserve, r *Reserve, now uint64) (BorrowBalance, error) {
	balance := BorrowBalance{
		Principal:  big.NewInt(0),
		Compounded: big.NewInt(0),
		Increase:   big.NewInt(0),
	}
	if u == nil || r == nil {
		return balance, nil
	}
	u.EnsureDefaults()
	if u.PrincipalBorrowBalance.Sign() == 0 {
		return balance, nil
	}
	balance.Principal = new(big.Int).Set(u.PrincipalBorrowBalance)

	switch u.RateMode {
	case RateModeVariable:
		snapshot := u.VariableBorrowIndex
		if snapshot.Sign() == 0 {
			snapshot = oneUnit
		}
		// The snapshot and the projected index share the 1e9 scale, so
		// the ratio collapses back to raw units.
		scaled := new(big.Int).Mul(balance.Principal, r.normalizedVariableDebt(now))
		balance.Compounded = scaled.Quo(scaled, snapshot)
	case RateModeStable:
		var elapsed uint64
		if now > u.LastUpdateTimestamp {
			elapsed = now - u.LastUpdateTimestamp
		}
		growth := compoundedInterest(u.StableBorrowRate, elapsed)
		balance.Compounded = unitMul(balance.Principal, growth)
	default:
		balance.Compounded = new(big.Int).Set(balance.Principal)
	}

	if balance.Compounded.Cmp(balance.Principal) < 0 {
		balance.Compounded = new(big.Int).Set(balance.Principal)
	}
	balance.Increase = new(big.Int).Sub(balance.Compounded, balance.Principal)
	return balance, nil
}

// ensureUserReserve loads the per-user position, creating a zeroed record
// when absent. An existing record is returned untouched: repeated
// initialisation must never reset deposit or borrow history.
func (e *Engine) ensureUserReserve(reserveID string, user crypto.Address) (*UserReserve, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.state.GetUserReserve(reserveID, user)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &UserReserve{User: user, ReserveID: reserveID}
	}
	position.EnsureDefaults()
	return position, nil
}

// InitUser creates the per-user position record for a reserve if it does not
// exist yet. Only the lending pool identity may call it; creating is
// idempotent and never resets an existing record.
func (e *Engine) InitUser(caller crypto.Address, reserveID string, user crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.authorizePool(caller); err != nil {
		return err
	}
	if _, err := e.reserve(reserveID); err != nil {
		return err
	}
	position, err := e.state.GetUserReserve(reserveID, user)
	if err != nil {
		return err
	}
	if position != nil {
		return nil
	}
	position = &UserReserve{User: user, ReserveID: reserveID}
	position.EnsureDefaults()
	return e.state.PutUserReserve(position)
}

// SetUserUseReserveAsCollateral toggles whether the caller's deposit backs
// their borrows. Disabling is refused when it would leave outstanding debt
// under-collateralised.
func (e *Engine) SetUserUseReserveAsCollateral(caller crypto.Address, reserveID string, useAsCollateral bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	position, err := e.state.GetUserReserve(reserveID, caller)
	if err != nil {
		return err
	}
	if position == nil {
		return errPositionNotFound
	}
	if !position.User.Equal(caller) {
		return errNotPositionOwner
	}
	position.EnsureDefaults()

	if !useAsCollateral && position.UseAsCollateral {
		token, err := e.reserveToken(reserveID)
		if err != nil {
			return err
		}
		balance, err := token.BalanceOf(caller)
		if err != nil {
			return err
		}
		allowed, err := e.BalanceDecreaseAllowed(reserveID, caller, balance)
		if err != nil {
			return err
		}
		if !allowed {
			return errBalanceDecrease
		}
	}

	position.UseAsCollateral = useAsCollateral
	return e.state.PutUserReserve(position)
}

// AutonomousRewardEnabled reports whether the user opted into deferred
// reward auto-compounding for a reserve.
func (e *Engine) AutonomousRewardEnabled(reserveID string, user crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	position, err := e.state.GetUserReserve(reserveID, user)
	if err != nil {
		return false, err
	}
	return position != nil && position.AutonomousRewardStrategy, nil
}

// SetAutonomousRewardStrategy toggles the deferred reward auto-compounding
// hook for the caller's position.
func (e *Engine) SetAutonomousRewardStrategy(caller crypto.Address, reserveID string, enabled bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	position, err := e.state.GetUserReserve(reserveID, caller)
	if err != nil {
		return err
	}
	if position == nil {
		return errPositionNotFound
	}
	if !position.User.Equal(caller) {
		return errNotPositionOwner
	}
	position.EnsureDefaults()
	position.AutonomousRewardStrategy = enabled
	return e.state.PutUserReserve(position)
}
