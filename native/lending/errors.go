package lending

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure produced by the engine wraps exactly one of
// these sentinels so callers can classify outcomes with errors.Is without
// matching message text.
var (
	ErrValidation             = errors.New("lending: validation failed")
	ErrAuthorization          = errors.New("lending: caller not authorized")
	ErrState                  = errors.New("lending: state conflict")
	ErrInsufficientLiquidity  = errors.New("lending: insufficient liquidity")
	ErrInsufficientCollateral = errors.New("lending: insufficient collateral")
	ErrArithmetic             = errors.New("lending: arithmetic failure")
)

var (
	errNilState           = fmt.Errorf("%w: state not configured", ErrState)
	errNilOracle          = fmt.Errorf("%w: price oracle not configured", ErrState)
	errNilFeeProvider     = fmt.Errorf("%w: fee provider not configured", ErrState)
	errNilRegistry        = fmt.Errorf("%w: address registry not configured", ErrState)
	errNilTokenSource     = fmt.Errorf("%w: token source not configured", ErrState)
	errInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrValidation)
	errInvalidRateMode    = fmt.Errorf("%w: unsupported interest rate mode", ErrValidation)
	errInvalidReserve     = fmt.Errorf("%w: malformed reserve configuration", ErrValidation)
	errFeeTooSmall        = fmt.Errorf("%w: origination fee rounds to zero", ErrValidation)
	errStableBorrowCap    = fmt.Errorf("%w: stable borrow exceeds the liquidity concentration cap", ErrValidation)
	errNotOwner           = fmt.Errorf("%w: caller is not the protocol owner", ErrAuthorization)
	errNotLendingPool     = fmt.Errorf("%w: caller is not the lending pool", ErrAuthorization)
	errNotReserveToken    = fmt.Errorf("%w: caller is not the reserve token", ErrAuthorization)
	errNotPositionOwner   = fmt.Errorf("%w: caller is not the position owner", ErrAuthorization)
	errReserveExists      = fmt.Errorf("%w: reserve already initialised", ErrState)
	errReserveNotFound    = fmt.Errorf("%w: reserve not found", ErrState)
	errPositionNotFound   = fmt.Errorf("%w: user position not found", ErrState)
	errNoDebtToRepay      = fmt.Errorf("%w: no outstanding debt to repay", ErrState)
	errReserveInUse       = fmt.Errorf("%w: reserve has outstanding deposits or borrows", ErrState)
	errLiquidityShortfall = fmt.Errorf("%w: reserve cannot cover the requested amount", ErrInsufficientLiquidity)
	errInsufficientFunds  = fmt.Errorf("%w: insufficient underlying balance", ErrValidation)
	errZeroCollateral     = fmt.Errorf("%w: collateral balance is zero", ErrInsufficientCollateral)
	errHealthBelowOne     = fmt.Errorf("%w: health factor below liquidation threshold", ErrInsufficientCollateral)
	errCollateralShort    = fmt.Errorf("%w: collateral cannot cover the new borrow", ErrInsufficientCollateral)
	errBalanceDecrease    = fmt.Errorf("%w: withdrawal would leave an unhealthy position", ErrInsufficientCollateral)
	errDivisionByZero     = fmt.Errorf("%w: division by zero", ErrArithmetic)
	errNegativeAmount     = fmt.Errorf("%w: negative amount", ErrArithmetic)
)
