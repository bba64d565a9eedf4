package lending

import (
	"errors"
	"math/big"
	"testing"
)

func TestCompoundedBorrowBalanceVariableMode(t *testing.T) {
	reserve := &Reserve{ID: "usd", LastUpdateTimestamp: 1_000}
	reserve.EnsureDefaults()
	reserve.CurrentVariableBorrowRate = big.NewInt(100_000_000)

	position := &UserReserve{
		ReserveID:              "usd",
		PrincipalBorrowBalance: big.NewInt(1_000_000),
		VariableBorrowIndex:    OneUnit(),
		RateMode:               RateModeVariable,
		LastUpdateTimestamp:    1_000,
	}
	position.EnsureDefaults()

	atRest, err := compoundedBorrowBalance(position, reserve, 1_000)
	if err != nil {
		t.Fatalf("compound: %v", err)
	}
	if atRest.Compounded.Cmp(atRest.Principal) != 0 || atRest.Increase.Sign() != 0 {
		t.Fatalf("no elapsed time, got %+v", atRest)
	}

	later, err := compoundedBorrowBalance(position, reserve, 1_000+30*86_400)
	if err != nil {
		t.Fatalf("compound: %v", err)
	}
	if later.Compounded.Cmp(later.Principal) <= 0 {
		t.Fatalf("debt did not grow: %+v", later)
	}
	want := new(big.Int).Sub(later.Compounded, later.Principal)
	if later.Increase.Cmp(want) != 0 {
		t.Fatalf("increase %v, want %v", later.Increase, want)
	}
}

func TestCompoundedBorrowBalanceStableModeUsesLockedRate(t *testing.T) {
	reserve := &Reserve{ID: "usd", LastUpdateTimestamp: 1_000}
	reserve.EnsureDefaults()
	// The reserve's live variable rate must not affect a stable position.
	reserve.CurrentVariableBorrowRate = big.NewInt(900_000_000)

	position := &UserReserve{
		ReserveID:              "usd",
		PrincipalBorrowBalance: big.NewInt(1_000_000_000),
		StableBorrowRate:       big.NewInt(50_000_000),
		RateMode:               RateModeStable,
		LastUpdateTimestamp:    1_000,
	}
	position.EnsureDefaults()

	elapsed := uint64(SecondsPerYear / 12)
	balance, err := compoundedBorrowBalance(position, reserve, 1_000+elapsed)
	if err != nil {
		t.Fatalf("compound: %v", err)
	}
	// Stable debt grows at the locked rate, regardless of where the
	// reserve's live variable rate has moved since.
	want := unitMul(position.PrincipalBorrowBalance, compoundedInterest(position.StableBorrowRate, elapsed))
	if balance.Compounded.Cmp(want) != 0 {
		t.Fatalf("compounded %v, want %v", balance.Compounded, want)
	}
	if balance.Compounded.Cmp(balance.Principal) <= 0 {
		t.Fatalf("stable debt did not grow: %+v", balance)
	}
	hot := unitMul(position.PrincipalBorrowBalance, compoundedInterest(reserve.CurrentVariableBorrowRate, elapsed))
	if balance.Compounded.Cmp(hot) >= 0 {
		t.Fatal("stable debt tracked the variable rate")
	}
}

func TestCompoundedBorrowBalanceEmptyPosition(t *testing.T) {
	reserve := &Reserve{ID: "usd"}
	reserve.EnsureDefaults()
	position := &UserReserve{ReserveID: "usd"}
	position.EnsureDefaults()

	balance, err := compoundedBorrowBalance(position, reserve, 5_000)
	if err != nil {
		t.Fatalf("compound: %v", err)
	}
	if balance.Principal.Sign() != 0 || balance.Compounded.Sign() != 0 {
		t.Fatalf("empty position carries debt: %+v", balance)
	}
}

func TestSetUserUseReserveAsCollateral(t *testing.T) {
	rig := newTestRig(t, rateFee{})
	rig.fund(rig.user, 1_000_000)
	if err := rig.engine.Deposit(rig.user, "usd", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Free position: the flag toggles both ways.
	if err := rig.engine.SetUserUseReserveAsCollateral(rig.user, "usd", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	position, _ := rig.state.GetUserReserve("usd", rig.user)
	if position.UseAsCollateral {
		t.Fatal("flag still set after disable")
	}
	if err := rig.engine.SetUserUseReserveAsCollateral(rig.user, "usd", true); err != nil {
		t.Fatalf("re-enable: %v", err)
	}

	// With debt outstanding the deposit cannot stop backing it.
	if err := rig.engine.Borrow(rig.user, "usd", big.NewInt(400_000), RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	err := rig.engine.SetUserUseReserveAsCollateral(rig.user, "usd", false)
	if !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected collateral rejection, got %v", err)
	}
}

func TestSetUserUseReserveAsCollateralUnknownPosition(t *testing.T) {
	rig := newTestRig(t, rateFee{})

	err := rig.engine.SetUserUseReserveAsCollateral(rig.user, "usd", true)
	if !errors.Is(err, errPositionNotFound) {
		t.Fatalf("expected missing-position error, got %v", err)
	}
	err = rig.engine.SetAutonomousRewardStrategy(rig.user, "usd", true)
	if !errors.Is(err, errPositionNotFound) {
		t.Fatalf("expected missing-position error, got %v", err)
	}
}

func TestAutonomousRewardStrategyToggle(t *testing.T) {
	rig := newTestRig(t, rateFee{})
	rig.fund(rig.user, 1_000)
	if err := rig.engine.Deposit(rig.user, "usd", big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	enabled, err := rig.engine.AutonomousRewardEnabled("usd", rig.user)
	if err != nil || enabled {
		t.Fatalf("default opt-in state: %v %v", enabled, err)
	}
	if err := rig.engine.SetAutonomousRewardStrategy(rig.user, "usd", true); err != nil {
		t.Fatalf("opt in: %v", err)
	}
	enabled, err = rig.engine.AutonomousRewardEnabled("usd", rig.user)
	if err != nil || !enabled {
		t.Fatalf("after opt-in: %v %v", enabled, err)
	}
}

func TestInitUserIsIdempotent(t *testing.T) {
	rig := newTestRig(t, rateFee{})
	rig.fund(rig.user, 1_000)

	if err := rig.engine.InitUser(rig.pool, "usd", rig.user); err != nil {
		t.Fatalf("init user: %v", err)
	}
	if err := rig.engine.Deposit(rig.user, "usd", big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// Re-initialising must not wipe the existing position.
	if err := rig.engine.InitUser(rig.pool, "usd", rig.user); err != nil {
		t.Fatalf("re-init: %v", err)
	}
	position, _ := rig.state.GetUserReserve("usd", rig.user)
	if !position.UseAsCollateral {
		t.Fatal("re-init reset the position")
	}

	if err := rig.engine.InitUser(rig.user, "usd", rig.user); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("non-pool init: %v", err)
	}
}

func TestUserReserveDataProjectsDebt(t *testing.T) {
	rig := newTestRig(t, rateFee{})
	rig.fund(rig.user, 2_000_000)
	if err := rig.engine.Deposit(rig.user, "usd", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := rig.engine.Borrow(rig.user, "usd", big.NewInt(100_000), RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	view, err := rig.engine.UserReserveData("usd", rig.user)
	if err != nil {
		t.Fatalf("user reserve data: %v", err)
	}
	if view.Position.PrincipalBorrowBalance.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("principal %v, want 100000", view.Position.PrincipalBorrowBalance)
	}
	if view.CompoundedDebt.Cmp(big.NewInt(100_000)) < 0 {
		t.Fatalf("compounded %v below principal", view.CompoundedDebt)
	}
	if view.Position.OriginationFee.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("fee %v, want 250", view.Position.OriginationFee)
	}
}
