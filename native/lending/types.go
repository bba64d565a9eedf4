package lending

import (
	"math/big"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
)

// RateMode selects the interest regime applied to a borrow position.
type RateMode uint8

const (
	// RateModeNone marks a position with no open borrow.
	RateModeNone RateMode = iota
	// RateModeStable locks the reserve's stable rate at borrow time.
	RateModeStable
	// RateModeVariable tracks the live variable borrow rate via the
	// cumulative index.
	RateModeVariable
)

// Valid reports whether the mode is an acceptable borrow request input.
func (m RateMode) Valid() bool {
	return m == RateModeStable || m == RateModeVariable
}

func (m RateMode) String() string {
	switch m {
	case RateModeStable:
		return "stable"
	case RateModeVariable:
		return "variable"
	default:
		return "none"
	}
}

// Reserve captures the aggregate accounting state for one supported asset.
// Amounts are raw asset units; rates and cumulative indexes are 1e9 fixed
// point; the collateral percentages are plain integers (60 means 60%).
type Reserve struct {
	ID       string `json:"id"`
	Decimals uint8  `json:"decimals"`
	// TokenAddress identifies the scaled-balance deposit receipt token
	// collaborator bound to this reserve.
	TokenAddress crypto.Address `json:"tokenAddress"`

	BaseLTV              *big.Int `json:"baseLtv"`
	LiquidationThreshold *big.Int `json:"liquidationThreshold"`
	LiquidationBonus     *big.Int `json:"liquidationBonus"`

	TotalBorrowsStable   *big.Int `json:"totalBorrowsStable"`
	TotalBorrowsVariable *big.Int `json:"totalBorrowsVariable"`

	CurrentLiquidityRate           *big.Int `json:"currentLiquidityRate"`
	CurrentVariableBorrowRate      *big.Int `json:"currentVariableBorrowRate"`
	CurrentStableBorrowRate        *big.Int `json:"currentStableBorrowRate"`
	CurrentAverageStableBorrowRate *big.Int `json:"currentAverageStableBorrowRate"`

	LiquidityCumulativeIndex      *big.Int `json:"liquidityCumulativeIndex"`
	VariableBorrowCumulativeIndex *big.Int `json:"variableBorrowCumulativeIndex"`
	LastUpdateTimestamp           uint64   `json:"lastUpdateTimestamp"`

	Strategy RateStrategy `json:"strategy"`
}

// EnsureDefaults populates nil big.Int fields and zero indexes so persisted
// reserves are always safe to operate on.
func (r *Reserve) EnsureDefaults() {
	if r == nil {
		return
	}
	if r.BaseLTV == nil {
		r.BaseLTV = big.NewInt(0)
	}
	if r.LiquidationThreshold == nil {
		r.LiquidationThreshold = big.NewInt(0)
	}
	if r.LiquidationBonus == nil {
		r.LiquidationBonus = big.NewInt(0)
	}
	if r.TotalBorrowsStable == nil {
		r.TotalBorrowsStable = big.NewInt(0)
	}
	if r.TotalBorrowsVariable == nil {
		r.TotalBorrowsVariable = big.NewInt(0)
	}
	if r.CurrentLiquidityRate == nil {
		r.CurrentLiquidityRate = big.NewInt(0)
	}
	if r.CurrentVariableBorrowRate == nil {
		r.CurrentVariableBorrowRate = big.NewInt(0)
	}
	if r.CurrentStableBorrowRate == nil {
		r.CurrentStableBorrowRate = big.NewInt(0)
	}
	if r.CurrentAverageStableBorrowRate == nil {
		r.CurrentAverageStableBorrowRate = big.NewInt(0)
	}
	if r.LiquidityCumulativeIndex == nil || r.LiquidityCumulativeIndex.Sign() == 0 {
		r.LiquidityCumulativeIndex = OneUnit()
	}
	if r.VariableBorrowCumulativeIndex == nil || r.VariableBorrowCumulativeIndex.Sign() == 0 {
		r.VariableBorrowCumulativeIndex = OneUnit()
	}
	r.Strategy.EnsureDefaults()
}

// TotalBorrows returns the combined stable and variable debt of the reserve.
func (r *Reserve) TotalBorrows() *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	total := new(big.Int)
	if r.TotalBorrowsStable != nil {
		total.Add(total, r.TotalBorrowsStable)
	}
	if r.TotalBorrowsVariable != nil {
		total.Add(total, r.TotalBorrowsVariable)
	}
	return total
}

// UsableAsCollateral reports whether deposits in this reserve can back a
// borrow at all.
func (r *Reserve) UsableAsCollateral() bool {
	return r != nil && r.BaseLTV != nil && r.BaseLTV.Sign() > 0
}

// Unit returns 10^decimals, the raw-amount denomination of one whole asset.
func (r *Reserve) Unit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(r.Decimals)), nil)
}

// UserReserve maintains the per-user position against a single reserve. It is
// created lazily on first interaction and mutated only by the engine.
type UserReserve struct {
	User      crypto.Address `json:"user"`
	ReserveID string         `json:"reserveId"`

	PrincipalBorrowBalance *big.Int `json:"principalBorrowBalance"`
	// VariableBorrowIndex snapshots the reserve's variable cumulative index
	// at the last position touch.
	VariableBorrowIndex *big.Int `json:"variableBorrowIndex"`
	// OriginationFee is the outstanding, still unpaid borrow fee.
	OriginationFee *big.Int `json:"originationFee"`
	// StableBorrowRate is the locked-in rate when the position is in stable
	// mode, zero otherwise.
	StableBorrowRate    *big.Int `json:"stableBorrowRate"`
	RateMode            RateMode `json:"rateMode"`
	LastUpdateTimestamp uint64   `json:"lastUpdateTimestamp"`

	UseAsCollateral          bool `json:"useAsCollateral"`
	AutonomousRewardStrategy bool `json:"autonomousRewardStrategy"`
}

// EnsureDefaults populates nil big.Int fields on a persisted position.
func (u *UserReserve) EnsureDefaults() {
	if u == nil {
		return
	}
	if u.PrincipalBorrowBalance == nil {
		u.PrincipalBorrowBalance = big.NewInt(0)
	}
	if u.VariableBorrowIndex == nil {
		u.VariableBorrowIndex = big.NewInt(0)
	}
	if u.OriginationFee == nil {
		u.OriginationFee = big.NewInt(0)
	}
	if u.StableBorrowRate == nil {
		u.StableBorrowRate = big.NewInt(0)
	}
}

// HasOpenBorrow reports whether the position currently carries debt or an
// unpaid origination fee.
func (u *UserReserve) HasOpenBorrow() bool {
	if u == nil {
		return false
	}
	return (u.PrincipalBorrowBalance != nil && u.PrincipalBorrowBalance.Sign() > 0) ||
		(u.OriginationFee != nil && u.OriginationFee.Sign() > 0)
}

// ReserveConfig carries the owner-supplied parameters for a new reserve.
type ReserveConfig struct {
	ID                   string
	Decimals             uint8
	TokenAddress         crypto.Address
	BaseLTV              *big.Int
	LiquidationThreshold *big.Int
	LiquidationBonus     *big.Int
	Strategy             RateStrategy
}
