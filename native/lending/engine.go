package lending

import (
	"math/big"
	"strings"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/core/types"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
	nativecommon "github.com/sunidhiii/mando-lending-borrowing-sub000/native/common"
)

const moduleName = "lending"

// stableBorrowLiquidityDivisor caps a single stable-rate borrow at a quarter
// of the reserve's available liquidity to limit rate-lock concentration.
var stableBorrowLiquidityDivisor = big.NewInt(4)

// Engine sequences every public lending operation: it accrues reserve
// indexes, consults the risk figures, mutates the reserve and user ledgers
// and finally moves the underlying funds. All validation happens before the
// first persistence call so a failed operation leaves no state behind.
//
// The engine itself is the lending-pool identity: operations it initiates
// carry its configured pool address, and authorizePool resolves that address
// against the registry. In a single-process deployment the gate therefore
// verifies the registry wiring rather than an external caller.
//
// Execution is serialized by the hosting environment; the engine itself holds
// no locks and must not be called concurrently.
type Engine struct {
	state       State
	oracle      PriceOracle
	feeProvider FeeProvider
	registry    AddressRegistry
	tokens      TokenSource
	pauses      nativecommon.PauseView

	owner       crypto.Address
	poolAddress crypto.Address
	timestamp   uint64
}

// NewEngine constructs an engine owned by the protocol owner and acting as
// the given pool identity. Collaborators are wired through the setters before
// first use.
func NewEngine(owner, poolAddress crypto.Address) *Engine {
	return &Engine{owner: owner, poolAddress: poolAddress}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state State) { e.state = state }

// SetOracle wires the price feed collaborator.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetFeeProvider wires the origination fee collaborator.
func (e *Engine) SetFeeProvider(provider FeeProvider) { e.feeProvider = provider }

// SetRegistry wires the address registry used to resolve the pool identity.
func (e *Engine) SetRegistry(registry AddressRegistry) { e.registry = registry }

// SetTokenSource wires the resolver for per-reserve receipt tokens.
func (e *Engine) SetTokenSource(tokens TokenSource) { e.tokens = tokens }

// SetPauses wires the module pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetTimestamp records the host-provided unix time used for accrual deltas.
// The host sets it once per invocation; the engine never reads a wall clock.
func (e *Engine) SetTimestamp(now uint64) {
	if e == nil {
		return
	}
	if now > e.timestamp {
		e.timestamp = now
	}
}

// Timestamp returns the current host-provided time.
func (e *Engine) Timestamp() uint64 {
	if e == nil {
		return 0
	}
	return e.timestamp
}

// PoolAddress returns the identity the engine mutates state as.
func (e *Engine) PoolAddress() crypto.Address { return e.poolAddress }

// Owner returns the protocol owner address, the recipient of fee payments.
func (e *Engine) Owner() crypto.Address { return e.owner }

func (e *Engine) authorizeOwner(caller crypto.Address) error {
	if !caller.Equal(e.owner) {
		return errNotOwner
	}
	return nil
}

// authorizePool verifies the caller against the lending-pool identity held by
// the address registry. The shared ledger refuses mutation from anything
// else.
func (e *Engine) authorizePool(caller crypto.Address) error {
	if e.registry == nil {
		return errNilRegistry
	}
	pool, err := e.registry.LendingPool()
	if err != nil {
		return err
	}
	if !caller.Equal(pool) {
		return errNotLendingPool
	}
	return nil
}

func (e *Engine) reserve(id string) (*Reserve, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if strings.TrimSpace(id) == "" {
		return nil, errReserveNotFound
	}
	reserve, err := e.state.GetReserve(id)
	if err != nil {
		return nil, err
	}
	if reserve == nil {
		return nil, errReserveNotFound
	}
	reserve.EnsureDefaults()
	return reserve, nil
}

func (e *Engine) reserveToken(reserveID string) (ScaledBalanceToken, error) {
	if e.tokens == nil {
		return nil, errNilTokenSource
	}
	return e.tokens.ReserveToken(reserveID)
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = types.NewAccount()
	}
	account.EnsureDefaults()
	return account, nil
}

// availableLiquidity is the pool vault's undeployed balance of the reserve's
// asset.
func (e *Engine) availableLiquidity(reserveID string) (*big.Int, error) {
	vault, err := e.loadAccount(e.poolAddress)
	if err != nil {
		return nil, err
	}
	return vault.Balance(reserveID), nil
}

// transfer moves underlying funds between two accounts. The payer's balance
// must already have been verified; a shortfall here still aborts cleanly.
func (e *Engine) transfer(asset string, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromAccount, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if !fromAccount.Debit(asset, amount) {
		return errLiquidityShortfall
	}
	toAccount, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	toAccount.Credit(asset, amount)
	if err := e.state.PutAccount(from, fromAccount); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAccount)
}

// InitReserve registers a new asset reserve. Owner-gated; a second
// registration of the same identifier fails.
func (e *Engine) InitReserve(caller crypto.Address, cfg ReserveConfig) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorizeOwner(caller); err != nil {
		return err
	}
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return errInvalidReserve
	}
	if cfg.BaseLTV != nil && cfg.LiquidationThreshold != nil {
		if cfg.BaseLTV.Sign() < 0 || cfg.LiquidationThreshold.Cmp(cfg.BaseLTV) < 0 || cfg.LiquidationThreshold.Cmp(hundred) > 0 {
			return errInvalidReserve
		}
	}
	exists, err := e.state.HasReserve(id)
	if err != nil {
		return err
	}
	if exists {
		return errReserveExists
	}

	reserve := &Reserve{
		ID:                   id,
		Decimals:             cfg.Decimals,
		TokenAddress:         cfg.TokenAddress,
		BaseLTV:              cfg.BaseLTV,
		LiquidationThreshold: cfg.LiquidationThreshold,
		LiquidationBonus:     cfg.LiquidationBonus,
		Strategy:             cfg.Strategy.Clone(),
		LastUpdateTimestamp:  e.timestamp,
	}
	reserve.EnsureDefaults()
	return e.state.PutReserve(reserve)
}

// DeleteReserve removes a reserve's metadata. It refuses while any deposits
// or borrows are outstanding so no debt can be orphaned.
func (e *Engine) DeleteReserve(caller crypto.Address, reserveID string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorizeOwner(caller); err != nil {
		return err
	}
	reserve, err := e.reserve(reserveID)
	if err != nil {
		return err
	}
	if reserve.TotalBorrows().Sign() > 0 {
		return errReserveInUse
	}
	token, err := e.reserveToken(reserveID)
	if err != nil {
		return err
	}
	supply, err := token.TotalSupply()
	if err != nil {
		return err
	}
	if supply.Sign() > 0 {
		return errReserveInUse
	}
	return e.state.DeleteReserve(reserveID)
}

// SetReserveStrategy swaps the rate curve parameters of a reserve. Accrual
// runs first so the old curve applies up to this instant.
func (e *Engine) SetReserveStrategy(caller crypto.Address, reserveID string, strategy RateStrategy) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.authorizeOwner(caller); err != nil {
		return err
	}
	reserve, err := e.reserve(reserveID)
	if err != nil {
		return err
	}
	reserve.accrueInterest(e.timestamp)
	reserve.Strategy = strategy.Clone()
	available, err := e.availableLiquidity(reserveID)
	if err != nil {
		return err
	}
	if err := reserve.refreshRates(available); err != nil {
		return err
	}
	return e.state.PutReserve(reserve)
}

// Deposit moves amount of the underlying asset from the user into the
// reserve pool and mints receipt tokens one-to-one. The first deposit into a
// reserve marks it as collateral for the user.
func (e *Engine) Deposit(user crypto.Address, reserveID string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorizePool(e.poolAddress); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	reserve, err := e.reserve(reserveID)
	if err != nil {
		return err
	}
	token, err := e.reserveToken(reserveID)
	if err != nil {
		return err
	}
	reserve.accrueInterest(e.timestamp)

	userAccount, err := e.loadAccount(user)
	if err != nil {
		return err
	}
	if userAccount.Balance(reserveID).Cmp(amount) < 0 {
		return errInsufficientFunds
	}

	position, err := e.ensureUserReserve(reserveID, user)
	if err != nil {
		return err
	}
	isFirstDeposit := token.PrincipalBalanceOf(user).Sign() == 0

	if err := token.MintOnDeposit(user, amount); err != nil {
		return err
	}
	if err := e.transfer(reserveID, user, e.poolAddress, amount); err != nil {
		return err
	}

	if isFirstDeposit {
		position.UseAsCollateral = true
	}
	position.LastUpdateTimestamp = e.timestamp

	available, err := e.availableLiquidity(reserveID)
	if err != nil {
		return err
	}
	if err := reserve.refreshRates(available); err != nil {
		return err
	}

	if err := e.state.PutUserReserve(position); err != nil {
		return err
	}
	return e.state.PutReserve(reserve)
}

// Borrow draws amount from the reserve against the user's collateral in the
// requested rate mode. The origination fee is recorded as outstanding debt;
// only the drawn amount leaves the pool.
func (e *Engine) Borrow(user crypto.Address, reserveID string, amount *big.Int, mode RateMode) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorizePool(e.poolAddress); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if !mode.Valid() {
		return errInvalidRateMode
	}
	if e.feeProvider == nil {
		return errNilFeeProvider
	}

	reserve, err := e.reserve(reserveID)
	if err != nil {
		return err
	}
	reserve.accrueInterest(e.timestamp)

	available, err := e.availableLiquidity(reserveID)
	if err != nil {
		return err
	}
	if available.Cmp(amount) < 0 {
		return errLiquidityShortfall
	}

	data, err := e.CalculateUserGlobalData(user)
	if err != nil {
		return err
	}
	if data.TotalCollateralValue.Sign() == 0 {
		return errZeroCollateral
	}
	if data.HealthFactor.BelowThreshold() {
		return errHealthBelowOne
	}

	fee, err := e.feeProvider.CalculateLoanOriginationFee(amount)
	if err != nil {
		return err
	}
	if fee == nil || fee.Sign() <= 0 {
		return errFeeTooSmall
	}

	collateralNeeded, err := e.calculateCollateralNeeded(reserve, amount, fee, data.TotalBorrowValue, data.TotalFeesValue, data.CurrentLTV)
	if err != nil {
		return err
	}
	if collateralNeeded.Cmp(data.TotalCollateralValue) > 0 {
		return errCollateralShort
	}

	if mode == RateModeStable {
		cap := new(big.Int).Quo(available, stableBorrowLiquidityDivisor)
		if amount.Cmp(cap) > 0 {
			return errStableBorrowCap
		}
	}

	position, err := e.ensureUserReserve(reserveID, user)
	if err != nil {
		return err
	}
	debt, err := compoundedBorrowBalance(position, reserve, e.timestamp)
	if err != nil {
		return err
	}

	// Fold any previously recorded debt out of the old mode's totals, then
	// book the compounded balance plus the new draw under the requested
	// mode.
	if debt.Principal.Sign() > 0 {
		reserve.decreaseBorrows(position.RateMode, debt.Principal, position.StableBorrowRate)
	}
	lockedRate := big.NewInt(0)
	if mode == RateModeStable {
		lockedRate = new(big.Int).Set(reserve.CurrentStableBorrowRate)
	}
	newPrincipal := new(big.Int).Add(debt.Compounded, amount)
	reserve.increaseBorrows(mode, newPrincipal, lockedRate)

	position.PrincipalBorrowBalance = newPrincipal
	position.OriginationFee = new(big.Int).Add(position.OriginationFee, fee)
	position.RateMode = mode
	position.LastUpdateTimestamp = e.timestamp
	if mode == RateModeVariable {
		position.VariableBorrowIndex = new(big.Int).Set(reserve.VariableBorrowCumulativeIndex)
		position.StableBorrowRate = big.NewInt(0)
	} else {
		position.VariableBorrowIndex = big.NewInt(0)
		position.StableBorrowRate = lockedRate
	}

	if err := e.transfer(reserveID, e.poolAddress, user, amount); err != nil {
		return err
	}
	available, err = e.availableLiquidity(reserveID)
	if err != nil {
		return err
	}
	if err := reserve.refreshRates(available); err != nil {
		return err
	}

	if err := e.state.PutUserReserve(position); err != nil {
		return err
	}
	return e.state.PutReserve(reserve)
}

// Repay pays down the user's compounded debt plus outstanding origination
// fee. Fees settle first and route to the protocol owner; the principal
// portion returns to the reserve pool. Paying everything closes the
// position.
func (e *Engine) Repay(user crypto.Address, reserveID string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorizePool(e.poolAddress); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	reserve, err := e.reserve(reserveID)
	if err != nil {
		return err
	}
	reserve.accrueInterest(e.timestamp)

	position, err := e.ensureUserReserve(reserveID, user)
	if err != nil {
		return err
	}
	debt, err := compoundedBorrowBalance(position, reserve, e.timestamp)
	if err != nil {
		return err
	}
	if debt.Compounded.Sign() == 0 {
		return errNoDebtToRepay
	}

	originationFee := new(big.Int).Set(position.OriginationFee)
	owed := new(big.Int).Add(debt.Compounded, originationFee)
	payback := minBig(amount, owed)

	userAccount, err := e.loadAccount(user)
	if err != nil {
		return err
	}
	if userAccount.Balance(reserveID).Cmp(payback) < 0 {
		return errInsufficientFunds
	}

	if payback.Cmp(originationFee) <= 0 {
		// The whole payment is absorbed by the fee; principal stays put
		// and the funds go to the protocol owner.
		if err := e.transfer(reserveID, user, e.owner, payback); err != nil {
			return err
		}
		position.OriginationFee = new(big.Int).Sub(originationFee, payback)
		position.LastUpdateTimestamp = e.timestamp
		return e.state.PutUserReserve(position)
	}

	principalPortion := new(big.Int).Sub(payback, originationFee)
	if originationFee.Sign() > 0 {
		if err := e.transfer(reserveID, user, e.owner, originationFee); err != nil {
			return err
		}
	}
	if err := e.transfer(reserveID, user, e.poolAddress, principalPortion); err != nil {
		return err
	}

	reserve.decreaseBorrows(position.RateMode, debt.Principal, position.StableBorrowRate)
	remaining := new(big.Int).Sub(debt.Compounded, principalPortion)
	if remaining.Sign() > 0 {
		reserve.increaseBorrows(position.RateMode, remaining, position.StableBorrowRate)
		position.PrincipalBorrowBalance = remaining
		if position.RateMode == RateModeVariable {
			position.VariableBorrowIndex = new(big.Int).Set(reserve.VariableBorrowCumulativeIndex)
		}
		position.OriginationFee = big.NewInt(0)
		position.LastUpdateTimestamp = e.timestamp
	} else {
		// Fully repaid: the position returns to its inert state.
		position.PrincipalBorrowBalance = big.NewInt(0)
		position.OriginationFee = big.NewInt(0)
		position.VariableBorrowIndex = big.NewInt(0)
		position.StableBorrowRate = big.NewInt(0)
		position.RateMode = RateModeNone
		position.LastUpdateTimestamp = e.timestamp
	}

	available, err := e.availableLiquidity(reserveID)
	if err != nil {
		return err
	}
	if err := reserve.refreshRates(available); err != nil {
		return err
	}

	if err := e.state.PutUserReserve(position); err != nil {
		return err
	}
	return e.state.PutReserve(reserve)
}

// RedeemUnderlying releases amount of the underlying asset back to the user.
// Only the reserve's receipt token may call it, after burning the matching
// receipt balance. A zero post-redeem balance clears the collateral flag.
func (e *Engine) RedeemUnderlying(caller crypto.Address, reserveID string, user crypto.Address, amount, postBalance *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	reserve, err := e.reserve(reserveID)
	if err != nil {
		return err
	}
	if !caller.Equal(reserve.TokenAddress) {
		return errNotReserveToken
	}
	reserve.accrueInterest(e.timestamp)

	available, err := e.availableLiquidity(reserveID)
	if err != nil {
		return err
	}
	if available.Cmp(amount) < 0 {
		return errLiquidityShortfall
	}

	position, err := e.ensureUserReserve(reserveID, user)
	if err != nil {
		return err
	}
	if postBalance != nil && postBalance.Sign() == 0 {
		position.UseAsCollateral = false
	}
	position.LastUpdateTimestamp = e.timestamp

	if err := e.transfer(reserveID, e.poolAddress, user, amount); err != nil {
		return err
	}
	available, err = e.availableLiquidity(reserveID)
	if err != nil {
		return err
	}
	if err := reserve.refreshRates(available); err != nil {
		return err
	}

	if err := e.state.PutUserReserve(position); err != nil {
		return err
	}
	return e.state.PutReserve(reserve)
}

// NormalizedIncome projects the reserve's liquidity index to the current
// host time without persisting. The receipt token collaborator reads it to
// rebase balances.
func (e *Engine) NormalizedIncome(reserveID string) (*big.Int, error) {
	reserve, err := e.reserve(reserveID)
	if err != nil {
		return nil, err
	}
	return reserve.NormalizedIncome(e.timestamp), nil
}

// ReserveSnapshot is a read-only view of one reserve for data consumers.
type ReserveSnapshot struct {
	Reserve            *Reserve
	AvailableLiquidity *big.Int
	TotalLiquidity     *big.Int
	Utilization        *big.Int
}

// ReserveData assembles the reserve view including derived liquidity
// figures.
func (e *Engine) ReserveData(reserveID string) (*ReserveSnapshot, error) {
	reserve, err := e.reserve(reserveID)
	if err != nil {
		return nil, err
	}
	available, err := e.availableLiquidity(reserveID)
	if err != nil {
		return nil, err
	}
	totalBorrows := reserve.TotalBorrows()
	utilization, err := Utilization(totalBorrows, available)
	if err != nil {
		return nil, err
	}
	return &ReserveSnapshot{
		Reserve:            reserve,
		AvailableLiquidity: available,
		TotalLiquidity:     new(big.Int).Add(available, totalBorrows),
		Utilization:        utilization,
	}, nil
}

// ReserveIDs lists the registered reserves in registration order.
func (e *Engine) ReserveIDs() ([]string, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.ReserveIDs()
}

// UserReserveView is the per-position projection handed to data consumers.
type UserReserveView struct {
	Position        *UserReserve
	CompoundedDebt  *big.Int
	BalanceIncrease *big.Int
}

// UserReserveData returns the user's position against one reserve with its
// debt projected to the current host time.
func (e *Engine) UserReserveData(reserveID string, user crypto.Address) (*UserReserveView, error) {
	reserve, err := e.reserve(reserveID)
	if err != nil {
		return nil, err
	}
	position, err := e.ensureUserReserve(reserveID, user)
	if err != nil {
		return nil, err
	}
	debt, err := compoundedBorrowBalance(position, reserve, e.timestamp)
	if err != nil {
		return nil, err
	}
	return &UserReserveView{
		Position:        position,
		CompoundedDebt:  debt.Compounded,
		BalanceIncrease: debt.Increase,
	}, nil
}
