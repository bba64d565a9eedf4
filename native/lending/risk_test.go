package lending

import (
	"math/big"
	"testing"
)

func TestHealthFactorUnboundedWithoutDebt(t *testing.T) {
	hf, err := calculateHealthFactor(big.NewInt(1_000), big.NewInt(0), big.NewInt(0), big.NewInt(75))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !hf.Unbounded() {
		t.Fatal("zero debt should be unbounded")
	}
	if hf.Value() != nil {
		t.Fatalf("unbounded factor exposes value %v", hf.Value())
	}
	if hf.BelowThreshold() || hf.atOrBelowThreshold() {
		t.Fatal("unbounded factor must never gate")
	}
}

func TestHealthFactorRatio(t *testing.T) {
	// 2_000 collateral at a 75% threshold against 1_000 debt: 1.5 exactly.
	hf, err := calculateHealthFactor(big.NewInt(2_000), big.NewInt(1_000), nil, big.NewInt(75))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if hf.Unbounded() {
		t.Fatal("debt present, factor should be bounded")
	}
	if got := hf.Value(); got.Cmp(big.NewInt(1_500_000_000)) != 0 {
		t.Fatalf("health factor %v, want 1.5", got)
	}
	if hf.BelowThreshold() {
		t.Fatal("1.5 is above the liquidation threshold")
	}
}

func TestHealthFactorCountsFees(t *testing.T) {
	// Same position but unpaid fees push the denominator past the threshold:
	// 1_500 / (1_400 + 200) < 1.
	hf, err := calculateHealthFactor(big.NewInt(2_000), big.NewInt(1_400), big.NewInt(200), big.NewInt(75))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !hf.BelowThreshold() {
		t.Fatalf("expected factor below 1.0, got %v", hf.Value())
	}
}

func TestHealthFactorThresholdEdge(t *testing.T) {
	// Exactly 1.0: borrows are still allowed, withdrawals are not.
	hf, err := calculateHealthFactor(big.NewInt(2_000), big.NewInt(1_500), nil, big.NewInt(75))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := hf.Value(); got.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("health factor %v, want exactly 1.0", got)
	}
	if hf.BelowThreshold() {
		t.Fatal("exactly 1.0 is not below the borrow gate")
	}
	if !hf.atOrBelowThreshold() {
		t.Fatal("exactly 1.0 must trip the withdrawal gate")
	}
}

func TestUserGlobalDataAggregates(t *testing.T) {
	rig := newTestRig(t, rateFee{})
	rig.fund(rig.user, 2_000_000)
	if err := rig.engine.Deposit(rig.user, "usd", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := rig.engine.Borrow(rig.user, "usd", big.NewInt(400_000), RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	data, err := rig.engine.CalculateUserGlobalData(rig.user)
	if err != nil {
		t.Fatalf("global data: %v", err)
	}
	unit := OneUnit()
	wantCollateral := new(big.Int).Mul(big.NewInt(1_000_000), unit)
	if data.TotalCollateralValue.Cmp(wantCollateral) != 0 {
		t.Fatalf("collateral value %v, want %v", data.TotalCollateralValue, wantCollateral)
	}
	wantBorrow := new(big.Int).Mul(big.NewInt(400_000), unit)
	if data.TotalBorrowValue.Cmp(wantBorrow) != 0 {
		t.Fatalf("borrow value %v, want %v", data.TotalBorrowValue, wantBorrow)
	}
	wantFees := new(big.Int).Mul(big.NewInt(1_000), unit)
	if data.TotalFeesValue.Cmp(wantFees) != 0 {
		t.Fatalf("fees value %v, want %v", data.TotalFeesValue, wantFees)
	}
	if data.CurrentLTV.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("ltv %v, want 60", data.CurrentLTV)
	}
	if data.CurrentLiquidationThreshold.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("threshold %v, want 75", data.CurrentLiquidationThreshold)
	}
	if data.HealthFactor.Unbounded() {
		t.Fatal("borrower health factor should be bounded")
	}
}

func TestAvailableBorrowsNetsOriginationFee(t *testing.T) {
	rig := newTestRig(t, rateFee{})

	available, err := rig.engine.AvailableBorrows(big.NewInt(1_000_000), big.NewInt(0), big.NewInt(0), big.NewInt(60))
	if err != nil {
		t.Fatalf("available borrows: %v", err)
	}
	// 60% of 1_000_000 minus the 0.25% fee that borrowing it would cost.
	if available.Cmp(big.NewInt(598_500)) != 0 {
		t.Fatalf("available %v, want 598500", available)
	}
}

func TestAvailableBorrowsFloorsAtZero(t *testing.T) {
	rig := newTestRig(t, rateFee{})

	available, err := rig.engine.AvailableBorrows(big.NewInt(1_000_000), big.NewInt(700_000), big.NewInt(0), big.NewInt(60))
	if err != nil {
		t.Fatalf("available borrows: %v", err)
	}
	if available.Sign() != 0 {
		t.Fatalf("overdrawn position reports headroom %v", available)
	}
}

func TestBalanceDecreaseAllowed(t *testing.T) {
	rig := newTestRig(t, rateFee{})
	rig.fund(rig.user, 2_000_000)
	if err := rig.engine.Deposit(rig.user, "usd", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// No debt: any withdrawal passes.
	ok, err := rig.engine.BalanceDecreaseAllowed("usd", rig.user, big.NewInt(1_000_000))
	if err != nil || !ok {
		t.Fatalf("debt-free withdrawal: ok=%v err=%v", ok, err)
	}

	if err := rig.engine.Borrow(rig.user, "usd", big.NewInt(500_000), RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	ok, err = rig.engine.BalanceDecreaseAllowed("usd", rig.user, big.NewInt(300_000))
	if err != nil {
		t.Fatalf("simulate small withdrawal: %v", err)
	}
	if !ok {
		t.Fatal("withdrawal leaving a healthy position should pass")
	}

	ok, err = rig.engine.BalanceDecreaseAllowed("usd", rig.user, big.NewInt(400_000))
	if err != nil {
		t.Fatalf("simulate large withdrawal: %v", err)
	}
	if ok {
		t.Fatal("withdrawal dropping health below 1.0 should be blocked")
	}
}
