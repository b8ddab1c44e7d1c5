package lending

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

type staticOracle map[string]*big.Int

func (o staticOracle) Price(asset string) (*big.Int, error) {
	price, ok := o[asset]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", asset)
	}
	return price, nil
}

func scaled(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit)
}

func newTestRisk(rateBps, ratioPercent uint64, oracle staticOracle) (*RiskEngine, *Ledger, *int64) {
	ledger, _, now := newTestLedger(rateBps)
	return NewRiskEngine(ledger, oracle, ratioPercent), ledger, now
}

func TestValuate(t *testing.T) {
	risk, _, _ := newTestRisk(500, 150, staticOracle{"ATOM": scaled(1)})

	value, err := risk.Valuate(big.NewInt(150), "atom")
	if err != nil {
		t.Fatalf("valuate failed: %v", err)
	}
	if value.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected value 150, got %s", value)
	}

	zero, err := risk.Valuate(big.NewInt(0), "ATOM")
	if err != nil {
		t.Fatalf("valuate of zero failed: %v", err)
	}
	if zero.Sign() != 0 {
		t.Fatalf("expected zero value, got %s", zero)
	}

	if _, err := risk.Valuate(big.NewInt(1), "MISSING"); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestHealthyBoundary(t *testing.T) {
	risk, _, _ := newTestRisk(500, 150, nil)

	// 150 collateral against 100 debt sits exactly on the 150% boundary.
	if !risk.Healthy(big.NewInt(150), big.NewInt(100)) {
		t.Fatal("exact boundary must be healthy")
	}
	if risk.Healthy(big.NewInt(149), big.NewInt(100)) {
		t.Fatal("below boundary must be unhealthy")
	}
	if !risk.Healthy(big.NewInt(0), big.NewInt(0)) {
		t.Fatal("zero debt must always be healthy")
	}
	if risk.Healthy(big.NewInt(0), big.NewInt(1)) {
		t.Fatal("debt with no collateral must be unhealthy")
	}
}

func TestCheckBorrowAllowed(t *testing.T) {
	oracle := staticOracle{"ATOM": scaled(1), "USDX": scaled(2)}
	risk, ledger, _ := newTestRisk(500, 150, oracle)
	addr := makeAddress(0x11)

	if err := ledger.AdjustCollateral(addr, "ATOM", big.NewInt(150), true); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	// 50 units at price 2 is 100 debt value against 150 collateral value.
	if err := risk.CheckBorrowAllowed(addr, "ATOM", "USDX", big.NewInt(50)); err != nil {
		t.Fatalf("boundary borrow must pass: %v", err)
	}
	err := risk.CheckBorrowAllowed(addr, "ATOM", "USDX", big.NewInt(51))
	if !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestCheckBorrowAllowedCountsPendingInterest(t *testing.T) {
	oracle := staticOracle{"ATOM": scaled(1), "USDX": scaled(1)}
	risk, ledger, now := newTestRisk(500, 150, oracle)
	addr := makeAddress(0x12)

	if err := ledger.AdjustCollateral(addr, "ATOM", big.NewInt(165), true); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := ledger.AdjustDebt(addr, "USDX", big.NewInt(100), true); err != nil {
		t.Fatalf("borrow failed: %v", err)
	}
	*now += secondsPerYear

	// Outstanding is 105 with interest; headroom is 110 total debt, so 5 more
	// passes and 6 more fails.
	if err := risk.CheckBorrowAllowed(addr, "ATOM", "USDX", big.NewInt(5)); err != nil {
		t.Fatalf("borrow within headroom must pass: %v", err)
	}
	err := risk.CheckBorrowAllowed(addr, "ATOM", "USDX", big.NewInt(6))
	if !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestCheckLiquidatable(t *testing.T) {
	oracle := staticOracle{"ATOM": scaled(1), "USDX": scaled(1)}
	risk, ledger, _ := newTestRisk(500, 150, oracle)
	addr := makeAddress(0x13)

	if err := ledger.AdjustCollateral(addr, "ATOM", big.NewInt(150), true); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := ledger.AdjustDebt(addr, "USDX", big.NewInt(100), true); err != nil {
		t.Fatalf("borrow failed: %v", err)
	}

	if _, _, err := risk.CheckLiquidatable(addr, "ATOM", "USDX"); !errors.Is(err, ErrPositionHealthy) {
		t.Fatalf("expected ErrPositionHealthy, got %v", err)
	}

	// A price drop pushes the position under water.
	oracle["ATOM"] = new(big.Int).Div(unit, big.NewInt(2))
	debtValue, collateralValue, err := risk.CheckLiquidatable(addr, "ATOM", "USDX")
	if err != nil {
		t.Fatalf("liquidatable check failed: %v", err)
	}
	if debtValue.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected debt value 100, got %s", debtValue)
	}
	if collateralValue.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("expected collateral value 75, got %s", collateralValue)
	}
}
