package types

import "math/big"

// Account tracks the underlying-asset balances held by a single address.
// Amounts are denominated in the smallest unit of each asset and keyed by the
// reserve identifier so one account can hold every supported asset.
type Account struct {
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an account with an empty balance book.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// EnsureDefaults populates nil fields so persisted accounts are safe to use.
func (a *Account) EnsureDefaults() {
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
}

// Balance returns the held amount for the given asset, zero when absent. The
// returned value is a copy and safe to mutate.
func (a *Account) Balance(asset string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	bal, ok := a.Balances[asset]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// Credit increases the held amount for the given asset.
func (a *Account) Credit(asset string, amount *big.Int) {
	if a == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	a.EnsureDefaults()
	a.Balances[asset] = new(big.Int).Add(a.Balance(asset), amount)
}

// Debit decreases the held amount for the given asset. The caller is expected
// to have verified the balance beforehand; a shortfall is reported so no
// negative balance is ever recorded.
func (a *Account) Debit(asset string, amount *big.Int) bool {
	if a == nil || amount == nil || amount.Sign() <= 0 {
		return false
	}
	current := a.Balance(asset)
	if current.Cmp(amount) < 0 {
		return false
	}
	a.EnsureDefaults()
	a.Balances[asset] = current.Sub(current, amount)
	return true
}
