package lending

import (
	"fmt"
	"math/big"
	"strings"

	"lendpool/crypto"
)

// CollateralPosition records the collateral pledged by an account for a single
// asset. Amounts are 18-decimal fixed-point integers and never negative.
type CollateralPosition struct {
	Account crypto.Address
	Asset   string
	Amount  *big.Int
}

// Clone returns a deep copy so callers can mutate safely.
func (p *CollateralPosition) Clone() *CollateralPosition {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// DebtPosition records the outstanding principal an account owes for a single
// asset. Accrued interest is folded into Principal at every mutation point and
// LastAccrual records when that last happened, so interest is never owed but
// untracked across a mutation.
type DebtPosition struct {
	Account     crypto.Address
	Asset       string
	Principal   *big.Int
	LastAccrual int64
}

// Clone returns a deep copy so callers can mutate safely.
func (p *DebtPosition) Clone() *DebtPosition {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Principal != nil {
		clone.Principal = new(big.Int).Set(p.Principal)
	} else {
		clone.Principal = big.NewInt(0)
	}
	return &clone
}

// NormalizeAsset canonicalises an asset symbol to trimmed uppercase form.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("empty asset symbol")
	}
	return trimmed, nil
}
