package lending

import (
	"math/big"
	"testing"
)

func TestAccruedInterestFullYear(t *testing.T) {
	got := accruedInterest(big.NewInt(100), 500, secondsPerYear)
	if got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected 5 interest, got %s", got)
	}
}

func TestAccruedInterestZeroElapsed(t *testing.T) {
	if got := accruedInterest(big.NewInt(100), 500, 0); got.Sign() != 0 {
		t.Fatalf("expected zero interest for zero elapsed, got %s", got)
	}
	if got := accruedInterest(big.NewInt(100), 500, -10); got.Sign() != 0 {
		t.Fatalf("expected zero interest for negative elapsed, got %s", got)
	}
}

func TestAccruedInterestFloorsFractions(t *testing.T) {
	// Half a year at 5% on 100 is 2.5; floor division drops the fraction.
	got := accruedInterest(big.NewInt(100), 500, secondsPerYear/2)
	if got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("expected floored interest 2, got %s", got)
	}
}

func TestAccruedInterestDegenerateInputs(t *testing.T) {
	if got := accruedInterest(nil, 500, secondsPerYear); got.Sign() != 0 {
		t.Fatalf("expected zero interest for nil principal, got %s", got)
	}
	if got := accruedInterest(big.NewInt(0), 500, secondsPerYear); got.Sign() != 0 {
		t.Fatalf("expected zero interest for zero principal, got %s", got)
	}
	if got := accruedInterest(big.NewInt(100), 0, secondsPerYear); got.Sign() != 0 {
		t.Fatalf("expected zero interest for zero rate, got %s", got)
	}
}
