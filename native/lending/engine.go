package lending

import (
	"fmt"
	"math/big"

	"lendpool/core/events"
	"lendpool/crypto"
	nativecommon "lendpool/native/common"
)

const moduleName = "lending"

type engineState interface {
	RewardPool() (*big.Int, error)
	SetRewardPool(amount *big.Int) error
	IsAssetWhitelisted(asset string) (bool, error)
	SetAssetWhitelisted(asset string, whitelisted bool) error
	Snapshot() int
	RevertToSnapshot(revision int)
}

// AssetTransfer is the external custody collaborator. Transfer failures are
// propagated wrapped in ErrTransferFailed, never swallowed.
type AssetTransfer interface {
	Transfer(from, to crypto.Address, asset string, amount *big.Int) error
	BalanceOf(owner crypto.Address, asset string) (*big.Int, error)
}

// PriceStore accepts administrative price updates for the trusted oracle feed.
type PriceStore interface {
	SetPrice(asset string, price *big.Int) error
}

// CollateralAuctioneer receives seized collateral for time-boxed resale.
type CollateralAuctioneer interface {
	CreateAuction(caller crypto.Address, asset string, amount *big.Int) (uint64, error)
}

// FlashBorrower is invoked after the flash loan principal has been disbursed.
// The implementation must restore the pool balance plus fee before returning.
type FlashBorrower interface {
	OnFlashLoan(asset string, amount, fee *big.Int) error
}

// Engine orchestrates deposit, borrow, repay, flash loan, liquidation and
// reward distribution against the ledger, risk engine and auction engine.
// Every action either fully commits or fully aborts; multi-transfer actions
// run inside a state snapshot that is reverted on failure.
type Engine struct {
	state       engineState
	ledger      *Ledger
	risk        *RiskEngine
	transfer    AssetTransfer
	oracle      PriceOracle
	prices      PriceStore
	auctions    CollateralAuctioneer
	authorizer  nativecommon.Authorizer
	pauses      nativecommon.PauseView
	emitter     events.Emitter
	moduleAddr  crypto.Address
	auctionAddr crypto.Address
	rewardAsset string
	cfg         Config
}

// NewEngine constructs a pool coordinator. moduleAddr is the pool's custody
// account; auctionAddr is the auction engine's custody account that receives
// seized collateral remainders.
func NewEngine(moduleAddr, auctionAddr crypto.Address, cfg Config) *Engine {
	return &Engine{
		moduleAddr:  moduleAddr,
		auctionAddr: auctionAddr,
		cfg:         cfg,
		emitter:     events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the collateral/debt ledger.
func (e *Engine) SetLedger(ledger *Ledger) { e.ledger = ledger }

// SetRiskEngine wires the health-factor engine gating borrows and liquidations.
func (e *Engine) SetRiskEngine(risk *RiskEngine) { e.risk = risk }

// SetTransfer wires the asset custody collaborator.
func (e *Engine) SetTransfer(transfer AssetTransfer) { e.transfer = transfer }

// SetOracle wires the trusted price feed.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetPriceStore wires the sink for administrative price updates.
func (e *Engine) SetPriceStore(store PriceStore) { e.prices = store }

// SetAuctioneer wires the auction engine receiving seized collateral.
func (e *Engine) SetAuctioneer(auctions CollateralAuctioneer) { e.auctions = auctions }

// SetAuthorizer wires the capability check gating administrative operations.
func (e *Engine) SetAuthorizer(authorizer nativecommon.Authorizer) { e.authorizer = authorizer }

// SetPauses wires the module pause switch.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetRewardAsset configures the asset the reward pool is denominated in.
func (e *Engine) SetRewardAsset(asset string) { e.rewardAsset = asset }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets it to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt poolEvent) {
	if e == nil || e.emitter == nil || evt.evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) requireAuthorized(caller crypto.Address) error {
	if e.authorizer == nil {
		return errNilAuthorizer
	}
	return e.authorizer.Authorize(caller)
}

func (e *Engine) requireWhitelisted(asset string) error {
	ok, err := e.state.IsAssetWhitelisted(asset)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotWhitelisted, asset)
	}
	return nil
}

func (e *Engine) send(from, to crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.transfer.Transfer(from, to, asset, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) rewardPool() (*big.Int, error) {
	pool, err := e.state.RewardPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = big.NewInt(0)
	}
	return pool, nil
}

func (e *Engine) addToRewardPool(amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	pool, err := e.rewardPool()
	if err != nil {
		return err
	}
	return e.state.SetRewardPool(new(big.Int).Add(pool, amount))
}

func feeShare(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return share.Quo(share, basisPoints)
}

func (e *Engine) checkWired() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.ledger == nil:
		return errNilLedger
	case e.risk == nil:
		return errNilRisk
	case e.transfer == nil:
		return errNilTransfer
	default:
		return nil
	}
}

// Deposit transfers the asset into pool custody and credits the caller's
// collateral position.
func (e *Engine) Deposit(caller crypto.Address, asset string, amount *big.Int) error {
	if err := e.checkWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := e.requireWhitelisted(normalized); err != nil {
		return err
	}
	snap := e.state.Snapshot()
	if err := e.depositLocked(caller, normalized, amount); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newDepositEvent(caller, normalized, amount))
	return nil
}

func (e *Engine) depositLocked(caller crypto.Address, asset string, amount *big.Int) error {
	if err := e.send(caller, e.moduleAddr, asset, amount); err != nil {
		return err
	}
	return e.ledger.AdjustCollateral(caller, asset, amount, true)
}

// Withdraw releases collateral back to the caller provided the position
// backing debtAsset stays healthy afterwards.
func (e *Engine) Withdraw(caller crypto.Address, collateralAsset, debtAsset string, amount *big.Int) error {
	if err := e.checkWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := NormalizeAsset(collateralAsset)
	if err != nil {
		return err
	}
	snap := e.state.Snapshot()
	if err := e.withdrawLocked(caller, normalized, debtAsset, amount); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newWithdrawEvent(caller, normalized, amount))
	return nil
}

func (e *Engine) withdrawLocked(caller crypto.Address, collateralAsset, debtAsset string, amount *big.Int) error {
	if err := e.ledger.AdjustCollateral(caller, collateralAsset, amount, false); err != nil {
		return err
	}
	outstanding, err := e.ledger.OutstandingDebt(caller, debtAsset)
	if err != nil {
		return err
	}
	if outstanding.Sign() > 0 {
		remaining, err := e.ledger.CollateralBalance(caller, collateralAsset)
		if err != nil {
			return err
		}
		collateralValue, err := e.risk.Valuate(remaining, collateralAsset)
		if err != nil {
			return err
		}
		debtValue, err := e.risk.Valuate(outstanding, debtAsset)
		if err != nil {
			return err
		}
		if !e.risk.Healthy(collateralValue, debtValue) {
			return ErrInsufficientCollateral
		}
	}
	return e.send(e.moduleAddr, caller, collateralAsset, amount)
}

// Borrow disburses borrowAsset against the caller's collateral. The transfer
// fee is deducted from the disbursed amount and diverted to the reward pool;
// the debt is recorded at the full amount.
func (e *Engine) Borrow(caller crypto.Address, collateralAsset, borrowAsset string, amount *big.Int) error {
	if err := e.checkWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalizedCollateral, err := NormalizeAsset(collateralAsset)
	if err != nil {
		return err
	}
	normalizedBorrow, err := NormalizeAsset(borrowAsset)
	if err != nil {
		return err
	}
	if err := e.requireWhitelisted(normalizedCollateral); err != nil {
		return err
	}
	if err := e.requireWhitelisted(normalizedBorrow); err != nil {
		return err
	}
	if err := e.risk.CheckBorrowAllowed(caller, normalizedCollateral, normalizedBorrow, amount); err != nil {
		return err
	}
	fee := feeShare(amount, e.cfg.BorrowFeeBps)
	snap := e.state.Snapshot()
	if err := e.borrowLocked(caller, normalizedBorrow, amount, fee); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newBorrowEvent(caller, normalizedCollateral, normalizedBorrow, amount, fee))
	return nil
}

func (e *Engine) borrowLocked(caller crypto.Address, borrowAsset string, amount, fee *big.Int) error {
	if err := e.ledger.AdjustDebt(caller, borrowAsset, amount, true); err != nil {
		return err
	}
	net := new(big.Int).Sub(amount, fee)
	if err := e.send(e.moduleAddr, caller, borrowAsset, net); err != nil {
		return err
	}
	return e.addToRewardPool(fee)
}

// Repay settles debt. The payment first covers accrued interest, and a fee
// skimmed from the interest portion (never from principal) accrues to the
// reward pool.
func (e *Engine) Repay(caller crypto.Address, asset string, amount *big.Int) error {
	if err := e.checkWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	principal, err := e.ledger.DebtPrincipal(caller, normalized)
	if err != nil {
		return err
	}
	if principal.Sign() == 0 {
		return ErrNoActiveLoan
	}
	// One clock read for the whole action; the settlement below accrues
	// against the same instant the outstanding amount was quoted at.
	now := e.ledger.Now()
	interest, err := e.ledger.AccruedInterestAt(caller, normalized, now)
	if err != nil {
		return err
	}
	outstanding := new(big.Int).Add(principal, interest)
	if amount.Cmp(outstanding) > 0 {
		return ErrRepaymentTooHigh
	}
	interestPortion := new(big.Int).Set(interest)
	if amount.Cmp(interestPortion) < 0 {
		interestPortion.Set(amount)
	}
	fee := feeShare(interestPortion, e.cfg.RewardFeeBps)
	snap := e.state.Snapshot()
	if err := e.repayLocked(caller, normalized, amount, fee, now); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newRepayEvent(caller, normalized, amount, fee))
	return nil
}

func (e *Engine) repayLocked(caller crypto.Address, asset string, amount, fee *big.Int, now int64) error {
	if err := e.send(caller, e.moduleAddr, asset, amount); err != nil {
		return err
	}
	if err := e.ledger.AdjustDebtAt(caller, asset, amount, false, now); err != nil {
		return err
	}
	return e.addToRewardPool(fee)
}

// FlashLoan disburses the full amount, invokes the callback and requires the
// pool balance to be restored plus the flash fee before returning. A shortfall
// reverts every effect of the call; there is no partial flash loan state.
func (e *Engine) FlashLoan(borrower crypto.Address, asset string, amount *big.Int, callback FlashBorrower) error {
	if err := e.checkWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if callback == nil {
		return errNilCallback
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	balanceBefore, err := e.transfer.BalanceOf(e.moduleAddr, normalized)
	if err != nil {
		return err
	}
	fee := feeShare(amount, e.cfg.FlashLoanFeeBps)
	snap := e.state.Snapshot()
	if err := e.flashLoanLocked(borrower, normalized, amount, fee, balanceBefore, callback); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newFlashLoanEvent(borrower, normalized, amount, fee))
	return nil
}

func (e *Engine) flashLoanLocked(borrower crypto.Address, asset string, amount, fee, balanceBefore *big.Int, callback FlashBorrower) error {
	if err := e.send(e.moduleAddr, borrower, asset, amount); err != nil {
		return err
	}
	if err := callback.OnFlashLoan(asset, amount, fee); err != nil {
		return fmt.Errorf("%w: %v", ErrFlashLoanNotRepaid, err)
	}
	balanceAfter, err := e.transfer.BalanceOf(e.moduleAddr, asset)
	if err != nil {
		return err
	}
	required := new(big.Int).Add(balanceBefore, fee)
	if balanceAfter.Cmp(required) < 0 {
		return ErrFlashLoanNotRepaid
	}
	return e.addToRewardPool(fee)
}

// Liquidate settles an unhealthy position: the liquidator covers the full
// outstanding debt and receives the collateral portion exactly covering the
// debt value at current prices; the remainder moves into auction custody and
// is put up for sale. The position is wiped. The whole action is atomic.
func (e *Engine) Liquidate(liquidator, account crypto.Address, collateralAsset, debtAsset string) error {
	if err := e.checkWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.oracle == nil {
		return errNilOracle
	}
	if e.auctions == nil {
		return errNilAuctioneer
	}
	normalizedCollateral, err := NormalizeAsset(collateralAsset)
	if err != nil {
		return err
	}
	normalizedDebt, err := NormalizeAsset(debtAsset)
	if err != nil {
		return err
	}
	debtValue, _, err := e.risk.CheckLiquidatable(account, normalizedCollateral, normalizedDebt)
	if err != nil {
		return err
	}
	outstanding, err := e.ledger.OutstandingDebt(account, normalizedDebt)
	if err != nil {
		return err
	}
	collateral, err := e.ledger.CollateralBalance(account, normalizedCollateral)
	if err != nil {
		return err
	}
	price, err := e.oracle.Price(normalizedCollateral)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPriceUnavailable, normalizedCollateral)
	}
	// Collateral portion exactly covering the debt value at the current price.
	seize := new(big.Int).Mul(debtValue, unit)
	seize.Quo(seize, price)
	if seize.Cmp(collateral) > 0 {
		seize = new(big.Int).Set(collateral)
	}
	remainder := new(big.Int).Sub(collateral, seize)

	snap := e.state.Snapshot()
	auctionID, err := e.liquidateLocked(liquidator, account, normalizedCollateral, normalizedDebt, outstanding, seize, remainder)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newLiquidationEvent(liquidator, account, normalizedCollateral, normalizedDebt, outstanding, seize, remainder, auctionID))
	return nil
}

func (e *Engine) liquidateLocked(liquidator, account crypto.Address, collateralAsset, debtAsset string, outstanding, seize, remainder *big.Int) (uint64, error) {
	if err := e.send(liquidator, e.moduleAddr, debtAsset, outstanding); err != nil {
		return 0, err
	}
	if err := e.send(e.moduleAddr, liquidator, collateralAsset, seize); err != nil {
		return 0, err
	}
	if remainder.Sign() > 0 {
		if err := e.send(e.moduleAddr, e.auctionAddr, collateralAsset, remainder); err != nil {
			return 0, err
		}
	}
	if err := e.ledger.ClearPosition(account, collateralAsset, debtAsset); err != nil {
		return 0, err
	}
	if remainder.Sign() == 0 {
		return 0, nil
	}
	return e.auctions.CreateAuction(e.moduleAddr, collateralAsset, remainder)
}

// DistributeRewards transfers the accumulated reward pool to the recipient and
// resets the accumulator to zero. Authorized callers only.
func (e *Engine) DistributeRewards(caller, recipient crypto.Address) error {
	if err := e.checkWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if e.rewardAsset == "" {
		return fmt.Errorf("lending engine: reward asset not configured")
	}
	pool, err := e.rewardPool()
	if err != nil {
		return err
	}
	if pool.Sign() == 0 {
		return ErrNoRewardsToDistribute
	}
	snap := e.state.Snapshot()
	if err := e.distributeLocked(recipient, pool); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newRewardsDistributedEvent(recipient, pool))
	return nil
}

func (e *Engine) distributeLocked(recipient crypto.Address, pool *big.Int) error {
	if err := e.send(e.moduleAddr, recipient, e.rewardAsset, pool); err != nil {
		return err
	}
	return e.state.SetRewardPool(big.NewInt(0))
}

// SetWhitelisted lists or delists an asset. Authorized callers only.
func (e *Engine) SetWhitelisted(caller crypto.Address, asset string, whitelisted bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := e.state.SetAssetWhitelisted(normalized, whitelisted); err != nil {
		return err
	}
	e.emit(newAssetListedEvent(normalized, whitelisted))
	return nil
}

// UpdatePrice records a new oracle quote. Authorized callers only.
func (e *Engine) UpdatePrice(caller crypto.Address, asset string, price *big.Int) error {
	if e == nil {
		return errNilState
	}
	if e.prices == nil {
		return errNilPriceStore
	}
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := e.prices.SetPrice(normalized, price); err != nil {
		return err
	}
	e.emit(newPriceUpdatedEvent(normalized, price))
	return nil
}

// RewardPoolBalance reports the distributable fee accumulator.
func (e *Engine) RewardPoolBalance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.rewardPool()
}

// Ledger exposes the underlying ledger for read paths.
func (e *Engine) Ledger() *Ledger { return e.ledger }
