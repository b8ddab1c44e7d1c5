package lending

import "fmt"

// Config captures the fixed economic parameters of the pool. Values are
// configuration, not policy levers: the engine never tunes them at runtime.
type Config struct {
	// InterestRateBps is the fixed annual borrow rate in basis points.
	InterestRateBps uint64 `toml:"InterestRateBps"`
	// CollateralRatioPercent is the minimum collateral-to-debt value ratio in
	// percent required for a position to stay healthy.
	CollateralRatioPercent uint64 `toml:"CollateralRatioPercent"`
	// BorrowFeeBps is deducted from the disbursed borrow amount and diverted
	// to the reward pool.
	BorrowFeeBps uint64 `toml:"BorrowFeeBps"`
	// RewardFeeBps is skimmed from the interest portion of repayments into
	// the reward pool.
	RewardFeeBps uint64 `toml:"RewardFeeBps"`
	// FlashLoanFeeBps is the fee charged on flash loans (9 = 0.09%).
	FlashLoanFeeBps uint64 `toml:"FlashLoanFeeBps"`
}

// DefaultConfig returns the protocol defaults: 5% annual interest, 150%
// collateralization, 0.3% borrow fee, 10% interest skim, 0.09% flash fee.
func DefaultConfig() Config {
	return Config{
		InterestRateBps:        500,
		CollateralRatioPercent: 150,
		BorrowFeeBps:           30,
		RewardFeeBps:           1_000,
		FlashLoanFeeBps:        9,
	}
}

// Validate rejects parameter combinations the engine cannot operate under.
func (c Config) Validate() error {
	if c.CollateralRatioPercent < 100 {
		return fmt.Errorf("lending config: collateral ratio must be at least 100%%, got %d", c.CollateralRatioPercent)
	}
	for name, bps := range map[string]uint64{
		"InterestRateBps": c.InterestRateBps,
		"BorrowFeeBps":    c.BorrowFeeBps,
		"RewardFeeBps":    c.RewardFeeBps,
		"FlashLoanFeeBps": c.FlashLoanFeeBps,
	} {
		if bps > 10_000 {
			return fmt.Errorf("lending config: %s exceeds 100%%: %d", name, bps)
		}
	}
	return nil
}
