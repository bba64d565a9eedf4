package lending

import (
	"math/big"
	"testing"
)

func TestUtilizationBounds(t *testing.T) {
	zero, err := Utilization(big.NewInt(0), big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	if zero.Sign() != 0 {
		t.Fatalf("idle reserve should have zero utilization, got %v", zero)
	}

	full, err := Utilization(big.NewInt(500), big.NewInt(0))
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	if full.Cmp(OneUnit()) != 0 {
		t.Fatalf("fully drawn reserve should have utilization 1.0, got %v", full)
	}

	half, err := Utilization(big.NewInt(500), big.NewInt(500))
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	if half.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("expected 0.5 utilization, got %v", half)
	}

	if _, err := Utilization(big.NewInt(1), big.NewInt(-1)); err == nil {
		t.Fatal("negative liquidity should be rejected")
	}
}

func TestCalculateRatesIdleReserve(t *testing.T) {
	strategy := DefaultRateStrategy()
	rates, err := strategy.CalculateRates(big.NewInt(1_000_000), big.NewInt(0), big.NewInt(0), big.NewInt(0))
	if err != nil {
		t.Fatalf("calculate rates: %v", err)
	}
	if rates.LiquidityRate.Sign() != 0 {
		t.Fatalf("no borrows should mean zero liquidity rate, got %v", rates.LiquidityRate)
	}
	if rates.VariableBorrowRate.Cmp(strategy.BaseVariableBorrowRate) != 0 {
		t.Fatalf("variable rate should sit at the base, got %v", rates.VariableBorrowRate)
	}
	if rates.StableBorrowRate.Cmp(strategy.MarketStableRate) != 0 {
		t.Fatalf("stable rate should sit at the market anchor, got %v", rates.StableBorrowRate)
	}
}

func TestCalculateRatesBelowKink(t *testing.T) {
	strategy := DefaultRateStrategy()
	// 400 borrowed, 600 available: utilization 0.4, halfway to the 0.8 kink.
	rates, err := strategy.CalculateRates(big.NewInt(600), big.NewInt(0), big.NewInt(400), big.NewInt(0))
	if err != nil {
		t.Fatalf("calculate rates: %v", err)
	}
	wantVariable := new(big.Int).Add(strategy.BaseVariableBorrowRate, unitMul(strategy.VariableRateSlope1, big.NewInt(500_000_000)))
	if rates.VariableBorrowRate.Cmp(wantVariable) != 0 {
		t.Fatalf("variable rate %v, want %v", rates.VariableBorrowRate, wantVariable)
	}

	// All debt variable: liquidity rate = variable rate * utilization.
	wantLiquidity := unitMul(wantVariable, big.NewInt(400_000_000))
	if rates.LiquidityRate.Cmp(wantLiquidity) != 0 {
		t.Fatalf("liquidity rate %v, want %v", rates.LiquidityRate, wantLiquidity)
	}
}

func TestCalculateRatesAboveKink(t *testing.T) {
	strategy := DefaultRateStrategy()
	// 900 borrowed, 100 available: utilization 0.9, halfway through the
	// excess span.
	rates, err := strategy.CalculateRates(big.NewInt(100), big.NewInt(0), big.NewInt(900), big.NewInt(0))
	if err != nil {
		t.Fatalf("calculate rates: %v", err)
	}
	slopes := new(big.Int).Add(strategy.VariableRateSlope1, strategy.VariableRateSlope2)
	wantVariable := new(big.Int).Add(strategy.BaseVariableBorrowRate, unitMul(slopes, big.NewInt(500_000_000)))
	if rates.VariableBorrowRate.Cmp(wantVariable) != 0 {
		t.Fatalf("variable rate %v, want %v", rates.VariableBorrowRate, wantVariable)
	}
}

func TestCalculateRatesBlendsStableDebt(t *testing.T) {
	strategy := DefaultRateStrategy()
	average := big.NewInt(80_000_000)
	// Equal stable and variable debt at utilization 0.5.
	rates, err := strategy.CalculateRates(big.NewInt(1000), big.NewInt(500), big.NewInt(500), average)
	if err != nil {
		t.Fatalf("calculate rates: %v", err)
	}
	ratio, err := unitDiv(big.NewInt(500_000_000), optimalUtilization)
	if err != nil {
		t.Fatalf("unitDiv: %v", err)
	}
	variable := new(big.Int).Add(strategy.BaseVariableBorrowRate, unitMul(strategy.VariableRateSlope1, ratio))
	overall := new(big.Int).Add(variable, average)
	overall.Quo(overall, big.NewInt(2))
	wantLiquidity := unitMul(overall, big.NewInt(500_000_000))
	if rates.LiquidityRate.Cmp(wantLiquidity) != 0 {
		t.Fatalf("liquidity rate %v, want %v", rates.LiquidityRate, wantLiquidity)
	}
}

func TestRateStrategyCloneIsDeep(t *testing.T) {
	strategy := DefaultRateStrategy()
	clone := strategy.Clone()
	clone.BaseVariableBorrowRate.SetInt64(999)
	if strategy.BaseVariableBorrowRate.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatal("clone shares storage with the original")
	}
}
