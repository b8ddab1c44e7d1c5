package auction

import (
	"fmt"
	"math/big"
	"time"

	"lendpool/core/events"
	"lendpool/crypto"
	nativecommon "lendpool/native/common"
)

const moduleName = "auction"

// DefaultDuration is the fixed bidding window applied to every auction.
const DefaultDuration int64 = 24 * 60 * 60

type engineState interface {
	AuctionGet(id uint64) (*Auction, error)
	AuctionPut(a *Auction) error
	NextAuctionID() (uint64, error)
	Snapshot() int
	RevertToSnapshot(revision int)
}

// AssetTransfer is the external custody collaborator used for bid escrow,
// refunds and the final payout.
type AssetTransfer interface {
	Transfer(from, to crypto.Address, asset string, amount *big.Int) error
	BalanceOf(owner crypto.Address, asset string) (*big.Int, error)
}

// Engine runs sealed time-boxed auctions over seized collateral. Bid proceeds
// accumulate in the engine's custody account and are pooled without per-auction
// accounting.
type Engine struct {
	state      engineState
	transfer   AssetTransfer
	authorizer nativecommon.Authorizer
	pauses     nativecommon.PauseView
	emitter    events.Emitter
	nowFn      func() int64
	moduleAddr crypto.Address
	bidAsset   string
	duration   int64
}

// NewEngine constructs an auction engine. moduleAddr is the custody account
// holding auctioned collateral and bid escrow; bidAsset denominates bids.
func NewEngine(moduleAddr crypto.Address, bidAsset string, duration int64) *Engine {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Engine{
		moduleAddr: moduleAddr,
		bidAsset:   bidAsset,
		duration:   duration,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransfer wires the asset custody collaborator.
func (e *Engine) SetTransfer(transfer AssetTransfer) { e.transfer = transfer }

// SetAuthorizer wires the capability check gating create/end/withdraw.
func (e *Engine) SetAuthorizer(authorizer nativecommon.Authorizer) { e.authorizer = authorizer }

// SetPauses wires the module pause switch.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// ModuleAddress returns the engine's custody account.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddr }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt auctionEvent) {
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

func (e *Engine) send(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.transfer.Transfer(from, to, e.bidAsset, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) loadAuction(id uint64) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	a, err := e.state.AuctionGet(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAuctionNotFound
	}
	if a.Amount == nil {
		a.Amount = big.NewInt(0)
	}
	if a.HighestBid == nil {
		a.HighestBid = big.NewInt(0)
	}
	return a, nil
}

// CreateAuction opens a new auction over the supplied collateral amount. The
// collateral itself must already sit in the engine's custody account.
// Authorized callers only.
func (e *Engine) CreateAuction(caller crypto.Address, asset string, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := e.requireAuthorized(caller); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	normalized, err := normalizeAsset(asset)
	if err != nil {
		return 0, err
	}
	id, err := e.state.NextAuctionID()
	if err != nil {
		return 0, err
	}
	a := &Auction{
		ID:         id,
		Asset:      normalized,
		Amount:     new(big.Int).Set(amount),
		StartTime:  e.now(),
		HighestBid: big.NewInt(0),
	}
	if err := e.state.AuctionPut(a); err != nil {
		return 0, err
	}
	e.emit(newCreatedEvent(a))
	return id, nil
}

// PlaceBid escrows a strictly higher bid and refunds the previous highest
// bidder in full. A failed refund aborts the new bid entirely: the incoming
// escrow is returned and the auction is left untouched, so a recipient that
// cannot accept transfers blocks further bidding on that auction.
func (e *Engine) PlaceBid(bidder crypto.Address, id uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.transfer == nil {
		return errNilTransfer
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	a, err := e.loadAuction(id)
	if err != nil {
		return err
	}
	if a.Ended {
		return ErrAuctionEnded
	}
	if amount.Cmp(a.HighestBid) <= 0 {
		return ErrBidTooLow
	}
	snap := e.state.Snapshot()
	if err := e.placeBidLocked(a, bidder, amount); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newBidPlacedEvent(a))
	return nil
}

func (e *Engine) placeBidLocked(a *Auction, bidder crypto.Address, amount *big.Int) error {
	if err := e.send(bidder, e.moduleAddr, amount); err != nil {
		return err
	}
	if a.HighestBidder != nil {
		if err := e.send(e.moduleAddr, *a.HighestBidder, a.HighestBid); err != nil {
			return err
		}
	}
	holder := bidder
	a.HighestBidder = &holder
	a.HighestBid = new(big.Int).Set(amount)
	return e.state.AuctionPut(a)
}

// EndAuction closes the auction once the bidding window has elapsed, paying
// the collateral out to the winning bidder when one exists. Unsold collateral
// stays in engine custody; no re-auction is triggered. Authorized callers
// only, and the transition fires exactly once.
func (e *Engine) EndAuction(caller crypto.Address, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.transfer == nil {
		return errNilTransfer
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	a, err := e.loadAuction(id)
	if err != nil {
		return err
	}
	if a.Ended {
		return ErrAuctionAlreadyEnded
	}
	if e.now() < a.StartTime+e.duration {
		return ErrAuctionNotYetEndable
	}
	snap := e.state.Snapshot()
	if err := e.endAuctionLocked(a); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newEndedEvent(a))
	return nil
}

func (e *Engine) endAuctionLocked(a *Auction) error {
	a.Ended = true
	if a.HighestBidder != nil {
		if err := e.transfer.Transfer(e.moduleAddr, *a.HighestBidder, a.Asset, a.Amount); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	return e.state.AuctionPut(a)
}

// WithdrawFunds drains the engine's pooled bid proceeds to the recipient.
// Proceeds carry no per-auction accounting. Authorized callers only.
func (e *Engine) WithdrawFunds(caller, recipient crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.transfer == nil {
		return nil, errNilTransfer
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.requireAuthorized(caller); err != nil {
		return nil, err
	}
	balance, err := e.transfer.BalanceOf(e.moduleAddr, e.bidAsset)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.send(e.moduleAddr, recipient, balance); err != nil {
		return nil, err
	}
	e.emit(newFundsWithdrawnEvent(recipient, balance))
	return balance, nil
}

// GetAuction returns a copy of the auction record.
func (e *Engine) GetAuction(id uint64) (*Auction, error) {
	a, err := e.loadAuction(id)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}
