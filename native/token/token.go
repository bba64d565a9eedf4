// Package token implements the scaled-balance deposit receipt. Principal
// balances never rebase; the displayed balance multiplies principal by the
// reserve's normalized income relative to the per-user index snapshot taken
// at the last touch.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/schedule"
)

var (
	ErrInvalidAmount   = errors.New("token: amount must be positive")
	ErrBalanceTooLow   = errors.New("token: balance too low")
	ErrDecreaseBlocked = errors.New("token: redeem would leave an unhealthy position")
)

// Pool is the slice of the lending engine the token calls back into.
type Pool interface {
	NormalizedIncome(reserveID string) (*big.Int, error)
	RedeemUnderlying(caller crypto.Address, reserveID string, user crypto.Address, amount, postBalance *big.Int) error
	BalanceDecreaseAllowed(reserveID string, user crypto.Address, amount *big.Int) (bool, error)
	AutonomousRewardEnabled(reserveID string, user crypto.Address) (bool, error)
}

// RewardHook is scheduled after an interest-bearing balance increase for
// users that opted into autonomous reward compounding. It typically swaps
// the accrued reward and re-deposits it.
type RewardHook func(user crypto.Address, increase *big.Int)

var oneUnit = big.NewInt(1_000_000_000)

// Token is the receipt token for a single reserve. Operations are serialized
// by the hosting environment together with the rest of the protocol.
type Token struct {
	reserveID string
	address   crypto.Address
	pool      Pool

	principal map[string]*big.Int
	userIndex map[string]*big.Int
	total     *big.Int

	scheduler   *schedule.Scheduler
	rewardHook  RewardHook
	rewardDelay time.Duration
}

// New binds a receipt token to its reserve and pool.
func New(reserveID string, address crypto.Address, pool Pool) *Token {
	return &Token{
		reserveID: reserveID,
		address:   address,
		pool:      pool,
		principal: make(map[string]*big.Int),
		userIndex: make(map[string]*big.Int),
		total:     big.NewInt(0),
	}
}

// SetRewardHook arms the deferred auto-compound callback. The hook fires as
// a one-shot scheduled task after each balance increase for opted-in users.
func (t *Token) SetRewardHook(scheduler *schedule.Scheduler, delay time.Duration, hook RewardHook) {
	t.scheduler = scheduler
	t.rewardDelay = delay
	t.rewardHook = hook
}

// Address returns the token's own collaborator address.
func (t *Token) Address() crypto.Address { return t.address }

// ReserveID returns the reserve this token receipts for.
func (t *Token) ReserveID() string { return t.reserveID }

func (t *Token) principalOf(user crypto.Address) *big.Int {
	bal, ok := t.principal[user.Key()]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

func (t *Token) indexOf(user crypto.Address) *big.Int {
	idx, ok := t.userIndex[user.Key()]
	if !ok || idx == nil || idx.Sign() == 0 {
		return new(big.Int).Set(oneUnit)
	}
	return new(big.Int).Set(idx)
}

// rebased projects the user's balance through the current normalized income.
func (t *Token) rebased(user crypto.Address, income *big.Int) *big.Int {
	principal := t.principalOf(user)
	if principal.Sign() == 0 {
		return principal
	}
	balance := new(big.Int).Mul(principal, income)
	return balance.Quo(balance, t.indexOf(user))
}

// cumulate folds the accrued interest into the stored principal and resets
// the user's index snapshot to the current normalized income. It returns the
// balance increase.
func (t *Token) cumulate(user crypto.Address, income *big.Int) *big.Int {
	balance := t.rebased(user, income)
	increase := new(big.Int).Sub(balance, t.principalOf(user))
	t.principal[user.Key()] = balance
	t.userIndex[user.Key()] = new(big.Int).Set(income)
	if increase.Sign() > 0 {
		t.total = new(big.Int).Add(t.total, increase)
	}
	return increase
}

// scheduleReward arms the one-shot auto-compound task when the user opted in
// and interest was actually earned. Scheduling failures are swallowed; the
// reward stays in the balance and compounds with the next touch.
func (t *Token) scheduleReward(user crypto.Address, increase *big.Int) {
	if t.scheduler == nil || t.rewardHook == nil || increase.Sign() <= 0 {
		return
	}
	enabled, err := t.pool.AutonomousRewardEnabled(t.reserveID, user)
	if err != nil || !enabled {
		return
	}
	hook := t.rewardHook
	amount := new(big.Int).Set(increase)
	_, _ = t.scheduler.Schedule(t.rewardDelay, 0, func() { hook(user, amount) })
}

// MintOnDeposit credits freshly deposited principal one-to-one and snapshots
// the current normalized income as the user's new index.
func (t *Token) MintOnDeposit(user crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	income, err := t.pool.NormalizedIncome(t.reserveID)
	if err != nil {
		return err
	}
	increase := t.cumulate(user, income)
	t.principal[user.Key()] = new(big.Int).Add(t.principalOf(user), amount)
	t.total = new(big.Int).Add(t.total, amount)
	t.scheduleReward(user, increase)
	return nil
}

// Redeem burns up to the user's rebased balance and asks the pool to release
// the matching underlying amount. The pool re-checks liquidity; the token
// checks that the withdrawal leaves the position healthy.
func (t *Token) Redeem(user crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	income, err := t.pool.NormalizedIncome(t.reserveID)
	if err != nil {
		return err
	}
	t.cumulate(user, income)
	principal := t.principalOf(user)
	if principal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %v, want %v", ErrBalanceTooLow, principal, amount)
	}

	allowed, err := t.pool.BalanceDecreaseAllowed(t.reserveID, user, amount)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrDecreaseBlocked
	}

	// Burn only after the pool releases the underlying; a rejected release
	// must leave the receipt untouched.
	postBalance := new(big.Int).Sub(principal, amount)
	if err := t.pool.RedeemUnderlying(t.address, t.reserveID, user, amount, postBalance); err != nil {
		return err
	}
	t.principal[user.Key()] = postBalance
	t.total = new(big.Int).Sub(t.total, amount)
	return nil
}

// BurnOnLiquidation removes seized principal without releasing underlying
// funds. Reserved for the liquidation path.
func (t *Token) BurnOnLiquidation(user crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	income, err := t.pool.NormalizedIncome(t.reserveID)
	if err != nil {
		return err
	}
	t.cumulate(user, income)
	principal := t.principalOf(user)
	if principal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %v, want %v", ErrBalanceTooLow, principal, amount)
	}
	t.principal[user.Key()] = new(big.Int).Sub(principal, amount)
	t.total = new(big.Int).Sub(t.total, amount)
	return nil
}

// TransferOnLiquidation moves principal between two users, cumulating both
// sides first so neither loses accrued interest. Reserved for the
// liquidation path.
func (t *Token) TransferOnLiquidation(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	income, err := t.pool.NormalizedIncome(t.reserveID)
	if err != nil {
		return err
	}
	t.cumulate(from, income)
	t.cumulate(to, income)
	fromPrincipal := t.principalOf(from)
	if fromPrincipal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %v, want %v", ErrBalanceTooLow, fromPrincipal, amount)
	}
	t.principal[from.Key()] = new(big.Int).Sub(fromPrincipal, amount)
	t.principal[to.Key()] = new(big.Int).Add(t.principalOf(to), amount)
	return nil
}

// BalanceOf returns the rebased balance without mutating any snapshot.
func (t *Token) BalanceOf(user crypto.Address) (*big.Int, error) {
	income, err := t.pool.NormalizedIncome(t.reserveID)
	if err != nil {
		return nil, err
	}
	return t.rebased(user, income), nil
}

// PrincipalBalanceOf returns the raw non-rebasing principal.
func (t *Token) PrincipalBalanceOf(user crypto.Address) *big.Int {
	return t.principalOf(user)
}

// TotalSupply returns the aggregate principal across all holders.
func (t *Token) TotalSupply() (*big.Int, error) {
	return new(big.Int).Set(t.total), nil
}
