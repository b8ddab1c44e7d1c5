package lending

import (
	"math/big"
	"time"

	"lendpool/core/events"
	"lendpool/crypto"
)

type ledgerState interface {
	CollateralGet(addr crypto.Address, asset string) (*CollateralPosition, error)
	CollateralPut(pos *CollateralPosition) error
	DebtGet(addr crypto.Address, asset string) (*DebtPosition, error)
	DebtPut(pos *DebtPosition) error
}

// Ledger owns the collateral and debt position maps. Missing records are
// treated as zero-valued positions rather than a distinct null state.
type Ledger struct {
	state   ledgerState
	rateBps uint64
	emitter events.Emitter
	nowFn   func() int64
}

// NewLedger constructs a ledger accruing debt interest at the supplied fixed
// annual rate in basis points.
func NewLedger(rateBps uint64) *Ledger {
	return &Ledger{
		rateBps: rateBps,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the ledger to the external persistence layer.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func (l *Ledger) now() int64 {
	if l == nil || l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

// Now reads the ledger clock. Coordinated actions read it once and pass the
// value to the *At variants so every step of the action observes the same
// instant.
func (l *Ledger) Now() int64 { return l.now() }

func (l *Ledger) emit(evt poolEvent) {
	if l == nil || l.emitter == nil || evt.evt == nil {
		return
	}
	l.emitter.Emit(evt)
}

func (l *Ledger) ensureCollateral(addr crypto.Address, asset string) (*CollateralPosition, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	pos, err := l.state.CollateralGet(addr, asset)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &CollateralPosition{Account: addr, Asset: asset}
	}
	if pos.Amount == nil {
		pos.Amount = big.NewInt(0)
	}
	return pos, nil
}

func (l *Ledger) ensureDebt(addr crypto.Address, asset string) (*DebtPosition, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	pos, err := l.state.DebtGet(addr, asset)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &DebtPosition{Account: addr, Asset: asset}
	}
	if pos.Principal == nil {
		pos.Principal = big.NewInt(0)
	}
	return pos, nil
}

// AdjustCollateral increases the position on deposit or decreases it on
// withdrawal. Withdrawals beyond the current balance fail with
// ErrInsufficientCollateral and leave the position untouched.
func (l *Ledger) AdjustCollateral(addr crypto.Address, asset string, amount *big.Int, deposit bool) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	pos, err := l.ensureCollateral(addr, normalized)
	if err != nil {
		return err
	}
	if deposit {
		pos.Amount = new(big.Int).Add(pos.Amount, amount)
	} else {
		if pos.Amount.Cmp(amount) < 0 {
			return ErrInsufficientCollateral
		}
		pos.Amount = new(big.Int).Sub(pos.Amount, amount)
	}
	if err := l.state.CollateralPut(pos); err != nil {
		return err
	}
	l.emit(newCollateralChangedEvent(pos, amount, deposit))
	return nil
}

// AccruedInterest returns the interest pending against the position since its
// last accrual. The result is zero when no principal is outstanding.
func (l *Ledger) AccruedInterest(addr crypto.Address, asset string) (*big.Int, error) {
	return l.AccruedInterestAt(addr, asset, l.now())
}

// AccruedInterestAt is AccruedInterest evaluated at the supplied timestamp.
func (l *Ledger) AccruedInterestAt(addr crypto.Address, asset string, now int64) (*big.Int, error) {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	pos, err := l.ensureDebt(addr, normalized)
	if err != nil {
		return nil, err
	}
	return accruedInterest(pos.Principal, l.rateBps, now-pos.LastAccrual), nil
}

// AdjustDebt increases the principal on borrow or decreases it on repayment.
// Pending interest is folded into the principal before either mutation; this
// ordering is load-bearing, otherwise a principal change would silently drop
// interest accrued against the old principal.
func (l *Ledger) AdjustDebt(addr crypto.Address, asset string, amount *big.Int, borrow bool) error {
	return l.AdjustDebtAt(addr, asset, amount, borrow, l.now())
}

// AdjustDebtAt is AdjustDebt evaluated at the supplied timestamp, so an action
// that already read the pending interest mutates against the same clock.
func (l *Ledger) AdjustDebtAt(addr crypto.Address, asset string, amount *big.Int, borrow bool, now int64) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	pos, err := l.ensureDebt(addr, normalized)
	if err != nil {
		return err
	}
	interest := accruedInterest(pos.Principal, l.rateBps, now-pos.LastAccrual)
	principal := new(big.Int).Add(pos.Principal, interest)
	if borrow {
		principal.Add(principal, amount)
	} else {
		if amount.Cmp(principal) > 0 {
			return ErrRepaymentTooHigh
		}
		principal.Sub(principal, amount)
	}
	pos.Principal = principal
	pos.LastAccrual = now
	if err := l.state.DebtPut(pos); err != nil {
		return err
	}
	l.emit(newDebtChangedEvent(pos, amount, borrow))
	return nil
}

// CollateralBalance returns the collateral currently posted for the asset.
func (l *Ledger) CollateralBalance(addr crypto.Address, asset string) (*big.Int, error) {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	pos, err := l.ensureCollateral(addr, normalized)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(pos.Amount), nil
}

// DebtPrincipal returns the recorded principal, excluding pending interest.
func (l *Ledger) DebtPrincipal(addr crypto.Address, asset string) (*big.Int, error) {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	pos, err := l.ensureDebt(addr, normalized)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(pos.Principal), nil
}

// OutstandingDebt returns principal plus pending interest without mutating the
// position.
func (l *Ledger) OutstandingDebt(addr crypto.Address, asset string) (*big.Int, error) {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	pos, err := l.ensureDebt(addr, normalized)
	if err != nil {
		return nil, err
	}
	interest := accruedInterest(pos.Principal, l.rateBps, l.now()-pos.LastAccrual)
	return new(big.Int).Add(pos.Principal, interest), nil
}

// ClearPosition unconditionally zeroes the collateral balance for
// collateralAsset and the debt record for debtAsset. Used exclusively by
// liquidation; clearing is a terminal wipe, not a settlement, so no accrual
// step happens here.
func (l *Ledger) ClearPosition(addr crypto.Address, collateralAsset, debtAsset string) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	normalizedCollateral, err := NormalizeAsset(collateralAsset)
	if err != nil {
		return err
	}
	normalizedDebt, err := NormalizeAsset(debtAsset)
	if err != nil {
		return err
	}
	collateral, err := l.ensureCollateral(addr, normalizedCollateral)
	if err != nil {
		return err
	}
	debt, err := l.ensureDebt(addr, normalizedDebt)
	if err != nil {
		return err
	}
	collateral.Amount = big.NewInt(0)
	debt.Principal = big.NewInt(0)
	debt.LastAccrual = l.now()
	if err := l.state.CollateralPut(collateral); err != nil {
		return err
	}
	if err := l.state.DebtPut(debt); err != nil {
		return err
	}
	l.emit(newPositionClearedEvent(addr, normalizedCollateral, normalizedDebt))
	return nil
}
