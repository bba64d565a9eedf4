package lending

import (
	"math/big"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/core/types"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
)

// State is the persistence boundary of the engine. The hosting environment
// owns the backing store; the engine only reads and writes typed records
// through it. Reserve identifiers form an ordered set so aggregate risk
// calculations iterate deterministically.
type State interface {
	GetReserve(id string) (*Reserve, error)
	PutReserve(reserve *Reserve) error
	DeleteReserve(id string) error
	HasReserve(id string) (bool, error)
	ReserveIDs() ([]string, error)

	GetUserReserve(reserveID string, user crypto.Address) (*UserReserve, error)
	PutUserReserve(position *UserReserve) error

	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// PriceOracle supplies the unit price of a reserve's asset in 1e9 fixed
// point. An unset or expired price fails the lookup, which in turn aborts the
// calling operation.
type PriceOracle interface {
	Price(reserveID string) (*big.Int, error)
}

// FeeProvider computes the one-time origination fee charged on each borrow.
type FeeProvider interface {
	CalculateLoanOriginationFee(amount *big.Int) (*big.Int, error)
}

// AddressRegistry resolves the addresses of the protocol collaborators. Every
// cross-component call target is looked up here rather than held directly.
type AddressRegistry interface {
	Core() (crypto.Address, error)
	LendingPool() (crypto.Address, error)
	FeeProvider() (crypto.Address, error)
	DataProvider() (crypto.Address, error)
	Configurator() (crypto.Address, error)
}

// ScaledBalanceToken is the deposit receipt collaborator for one reserve. The
// displayed balance rebases principal by the reserve's normalized income; the
// principal balance is the raw non-rebasing amount.
type ScaledBalanceToken interface {
	MintOnDeposit(user crypto.Address, amount *big.Int) error
	BurnOnLiquidation(user crypto.Address, amount *big.Int) error
	TransferOnLiquidation(from, to crypto.Address, amount *big.Int) error
	BalanceOf(user crypto.Address) (*big.Int, error)
	PrincipalBalanceOf(user crypto.Address) *big.Int
	TotalSupply() (*big.Int, error)
}

// TokenSource resolves the receipt token bound to a reserve.
type TokenSource interface {
	ReserveToken(reserveID string) (ScaledBalanceToken, error)
}
