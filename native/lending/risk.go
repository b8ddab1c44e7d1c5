package lending

import (
	"fmt"
	"math/big"

	"lendpool/crypto"
)

// PriceOracle supplies 18-decimal fixed-point prices. Quotes are trusted and
// authoritative at call time; staleness checks are a caller concern.
type PriceOracle interface {
	Price(asset string) (*big.Int, error)
}

// RiskEngine values positions against oracle prices and gates borrow and
// liquidation transitions on the configured collateralization ratio.
type RiskEngine struct {
	ledger       *Ledger
	oracle       PriceOracle
	ratioPercent uint64
}

// NewRiskEngine constructs a risk engine enforcing the supplied
// collateralization ratio in percent (150 means collateral value must be at
// least 1.5x debt value).
func NewRiskEngine(ledger *Ledger, oracle PriceOracle, ratioPercent uint64) *RiskEngine {
	return &RiskEngine{ledger: ledger, oracle: oracle, ratioPercent: ratioPercent}
}

// Valuate prices an asset amount: amount * price / 1e18. Both multiplicands
// are 18-decimal scaled, so the product needs arbitrary precision; math/big
// keeps the intermediate exact before the floor division.
func (r *RiskEngine) Valuate(amount *big.Int, asset string) (*big.Int, error) {
	if r == nil || r.oracle == nil {
		return nil, errNilOracle
	}
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	price, err := r.oracle.Price(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, normalized)
	}
	value := new(big.Int).Mul(amount, price)
	return value.Quo(value, unit), nil
}

// Healthy reports whether collateralValue * 100 >= debtValue * ratioPercent.
// Zero debt is always healthy.
func (r *RiskEngine) Healthy(collateralValue, debtValue *big.Int) bool {
	if debtValue == nil || debtValue.Sign() == 0 {
		return true
	}
	if collateralValue == nil || collateralValue.Sign() == 0 {
		return false
	}
	lhs := new(big.Int).Mul(collateralValue, big.NewInt(100))
	rhs := new(big.Int).Mul(debtValue, new(big.Int).SetUint64(r.ratioPercent))
	return lhs.Cmp(rhs) >= 0
}

// CheckBorrowAllowed fails with ErrInsufficientCollateral when the position
// would be unhealthy after the hypothetical borrow. Existing debt is valued
// with pending interest included.
func (r *RiskEngine) CheckBorrowAllowed(addr crypto.Address, collateralAsset, borrowAsset string, amount *big.Int) error {
	if r == nil || r.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	collateral, err := r.ledger.CollateralBalance(addr, collateralAsset)
	if err != nil {
		return err
	}
	outstanding, err := r.ledger.OutstandingDebt(addr, borrowAsset)
	if err != nil {
		return err
	}
	collateralValue, err := r.Valuate(collateral, collateralAsset)
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(outstanding, amount)
	debtValue, err := r.Valuate(projected, borrowAsset)
	if err != nil {
		return err
	}
	if !r.Healthy(collateralValue, debtValue) {
		return ErrInsufficientCollateral
	}
	return nil
}

// CheckLiquidatable fails with ErrPositionHealthy when the position, valued at
// current balances and prices, still satisfies the collateralization ratio.
// On success it returns the computed debt and collateral values for use by the
// liquidation routine.
func (r *RiskEngine) CheckLiquidatable(addr crypto.Address, collateralAsset, debtAsset string) (debtValue, collateralValue *big.Int, err error) {
	if r == nil || r.ledger == nil {
		return nil, nil, errNilLedger
	}
	collateral, err := r.ledger.CollateralBalance(addr, collateralAsset)
	if err != nil {
		return nil, nil, err
	}
	outstanding, err := r.ledger.OutstandingDebt(addr, debtAsset)
	if err != nil {
		return nil, nil, err
	}
	collateralValue, err = r.Valuate(collateral, collateralAsset)
	if err != nil {
		return nil, nil, err
	}
	debtValue, err = r.Valuate(outstanding, debtAsset)
	if err != nil {
		return nil, nil, err
	}
	if r.Healthy(collateralValue, debtValue) {
		return nil, nil, ErrPositionHealthy
	}
	return debtValue, collateralValue, nil
}
