package auction

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"lendpool/crypto"
	nativecommon "lendpool/native/common"
)

// mockAuctionState backs the engine and the bid custody with maps. Snapshot
// deep-copies everything so reverts behave like the journaled store. Transfers
// to blockedRecipient fail, which is how refund failures are simulated.
type mockAuctionState struct {
	auctions         map[uint64]*Auction
	balances         map[string]*big.Int
	seq              uint64
	blockedRecipient *crypto.Address
	snapshots        []*mockAuctionState
}

func newMockAuctionState() *mockAuctionState {
	return &mockAuctionState{
		auctions: make(map[uint64]*Auction),
		balances: make(map[string]*big.Int),
	}
}

func (m *mockAuctionState) key(addr crypto.Address, asset string) string {
	return string(addr.Bytes()) + "/" + asset
}

func (m *mockAuctionState) copy() *mockAuctionState {
	cp := newMockAuctionState()
	for id, a := range m.auctions {
		cp.auctions[id] = a.Clone()
	}
	for k, v := range m.balances {
		cp.balances[k] = new(big.Int).Set(v)
	}
	cp.seq = m.seq
	cp.blockedRecipient = m.blockedRecipient
	return cp
}

func (m *mockAuctionState) Snapshot() int {
	m.snapshots = append(m.snapshots, m.copy())
	return len(m.snapshots) - 1
}

func (m *mockAuctionState) RevertToSnapshot(revision int) {
	if revision < 0 || revision >= len(m.snapshots) {
		return
	}
	restored := m.snapshots[revision]
	m.auctions = restored.auctions
	m.balances = restored.balances
	m.seq = restored.seq
	m.snapshots = m.snapshots[:revision]
}

func (m *mockAuctionState) AuctionGet(id uint64) (*Auction, error) {
	return m.auctions[id].Clone(), nil
}

func (m *mockAuctionState) AuctionPut(a *Auction) error {
	m.auctions[a.ID] = a.Clone()
	return nil
}

func (m *mockAuctionState) NextAuctionID() (uint64, error) {
	m.seq++
	return m.seq, nil
}

func (m *mockAuctionState) BalanceOf(owner crypto.Address, asset string) (*big.Int, error) {
	if bal, ok := m.balances[m.key(owner, asset)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockAuctionState) Transfer(from, to crypto.Address, asset string, amount *big.Int) error {
	if m.blockedRecipient != nil && m.blockedRecipient.Equal(to) {
		return fmt.Errorf("recipient rejects transfers")
	}
	fromBal, _ := m.BalanceOf(from, asset)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient %s balance", asset)
	}
	toBal, _ := m.BalanceOf(to, asset)
	m.balances[m.key(from, asset)] = fromBal.Sub(fromBal, amount)
	m.balances[m.key(to, asset)] = toBal.Add(toBal, amount)
	return nil
}

func (m *mockAuctionState) credit(owner crypto.Address, asset string, amount int64) {
	bal, _ := m.BalanceOf(owner, asset)
	m.balances[m.key(owner, asset)] = bal.Add(bal, big.NewInt(amount))
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = suffix
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

type testAuction struct {
	engine *Engine
	state  *mockAuctionState
	now    *int64
	vault  crypto.Address
	admin  crypto.Address
}

func newTestAuction(t *testing.T) *testAuction {
	t.Helper()
	state := newMockAuctionState()
	vault := makeAddress(0xE0)
	admin := makeAddress(0xE1)

	engine := NewEngine(vault, "LPC", DefaultDuration)
	engine.SetState(state)
	engine.SetTransfer(state)
	engine.SetAuthorizer(nativecommon.NewSingleOwner(admin))
	now := int64(10_000)
	engine.SetNowFunc(func() int64 { return now })

	return &testAuction{engine: engine, state: state, now: &now, vault: vault, admin: admin}
}

func TestCreateAuctionAssignsSequentialIDs(t *testing.T) {
	auc := newTestAuction(t)

	first, err := auc.engine.CreateAuction(auc.admin, "atom", big.NewInt(20))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := auc.engine.CreateAuction(auc.admin, "ATOM", big.NewInt(30))
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first, second)
	}

	a, err := auc.engine.GetAuction(first)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if a.Asset != "ATOM" || a.Amount.Cmp(big.NewInt(20)) != 0 || a.StartTime != 10_000 {
		t.Fatalf("unexpected auction record: %+v", a)
	}
}

func TestCreateAuctionRequiresAuthorization(t *testing.T) {
	auc := newTestAuction(t)
	stranger := makeAddress(0x41)

	if _, err := auc.engine.CreateAuction(stranger, "ATOM", big.NewInt(20)); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPlaceBidEscrowsAndRefunds(t *testing.T) {
	auc := newTestAuction(t)
	alice := makeAddress(0x42)
	bob := makeAddress(0x43)
	auc.state.credit(alice, "LPC", 100)
	auc.state.credit(bob, "LPC", 100)

	id, err := auc.engine.CreateAuction(auc.admin, "ATOM", big.NewInt(20))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := auc.engine.PlaceBid(alice, id, big.NewInt(40)); err != nil {
		t.Fatalf("first bid failed: %v", err)
	}
	if err := auc.engine.PlaceBid(bob, id, big.NewInt(40)); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("matching bid must fail, got %v", err)
	}
	if err := auc.engine.PlaceBid(bob, id, big.NewInt(60)); err != nil {
		t.Fatalf("higher bid failed: %v", err)
	}

	// Alice is refunded in full; only Bob's bid stays escrowed.
	aliceBal, _ := auc.state.BalanceOf(alice, "LPC")
	if aliceBal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected full refund, alice holds %s", aliceBal)
	}
	bobBal, _ := auc.state.BalanceOf(bob, "LPC")
	if bobBal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected 60 escrowed, bob holds %s", bobBal)
	}
	vaultBal, _ := auc.state.BalanceOf(auc.vault, "LPC")
	if vaultBal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected 60 in escrow, vault holds %s", vaultBal)
	}

	a, _ := auc.engine.GetAuction(id)
	if a.HighestBidder == nil || !a.HighestBidder.Equal(bob) || a.HighestBid.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected highest bid record: %+v", a)
	}
}

func TestPlaceBidAbortsWhenRefundFails(t *testing.T) {
	auc := newTestAuction(t)
	alice := makeAddress(0x44)
	bob := makeAddress(0x45)
	auc.state.credit(alice, "LPC", 100)
	auc.state.credit(bob, "LPC", 100)

	id, err := auc.engine.CreateAuction(auc.admin, "ATOM", big.NewInt(20))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := auc.engine.PlaceBid(alice, id, big.NewInt(40)); err != nil {
		t.Fatalf("first bid failed: %v", err)
	}

	auc.state.blockedRecipient = &alice
	if err := auc.engine.PlaceBid(bob, id, big.NewInt(60)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	// The failed bid leaves no trace: Bob keeps his funds and Alice stays the
	// highest bidder.
	bobBal, _ := auc.state.BalanceOf(bob, "LPC")
	if bobBal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("aborted bid must return escrow, bob holds %s", bobBal)
	}
	a, _ := auc.engine.GetAuction(id)
	if a.HighestBidder == nil || !a.HighestBidder.Equal(alice) || a.HighestBid.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("aborted bid must not change the record: %+v", a)
	}
}

func TestPlaceBidUnknownAuction(t *testing.T) {
	auc := newTestAuction(t)
	bidder := makeAddress(0x46)
	auc.state.credit(bidder, "LPC", 100)

	if err := auc.engine.PlaceBid(bidder, 99, big.NewInt(10)); !errors.Is(err, ErrAuctionNotFound) {
		t.Fatalf("expected ErrAuctionNotFound, got %v", err)
	}
}

func TestEndAuctionPaysWinnerOnce(t *testing.T) {
	auc := newTestAuction(t)
	bidder := makeAddress(0x47)
	auc.state.credit(bidder, "LPC", 100)
	auc.state.credit(auc.vault, "ATOM", 20)

	id, err := auc.engine.CreateAuction(auc.admin, "ATOM", big.NewInt(20))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := auc.engine.PlaceBid(bidder, id, big.NewInt(40)); err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	if err := auc.engine.EndAuction(auc.admin, id); !errors.Is(err, ErrAuctionNotYetEndable) {
		t.Fatalf("expected ErrAuctionNotYetEndable, got %v", err)
	}

	*auc.now += DefaultDuration
	if err := auc.engine.EndAuction(auc.admin, id); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	won, _ := auc.state.BalanceOf(bidder, "ATOM")
	if won.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("expected winner to receive 20, got %s", won)
	}

	if err := auc.engine.EndAuction(auc.admin, id); !errors.Is(err, ErrAuctionAlreadyEnded) {
		t.Fatalf("expected ErrAuctionAlreadyEnded, got %v", err)
	}
	if err := auc.engine.PlaceBid(bidder, id, big.NewInt(50)); !errors.Is(err, ErrAuctionEnded) {
		t.Fatalf("expected ErrAuctionEnded, got %v", err)
	}
}

func TestEndAuctionWithoutBids(t *testing.T) {
	auc := newTestAuction(t)
	auc.state.credit(auc.vault, "ATOM", 20)

	id, err := auc.engine.CreateAuction(auc.admin, "ATOM", big.NewInt(20))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	*auc.now += DefaultDuration
	if err := auc.engine.EndAuction(auc.admin, id); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	// Unsold collateral stays put.
	held, _ := auc.state.BalanceOf(auc.vault, "ATOM")
	if held.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("expected collateral retained, vault holds %s", held)
	}
	a, _ := auc.engine.GetAuction(id)
	if !a.Ended {
		t.Fatal("expected auction marked ended")
	}
}

func TestWithdrawFundsDrainsProceeds(t *testing.T) {
	auc := newTestAuction(t)
	bidder := makeAddress(0x48)
	treasury := makeAddress(0x49)
	auc.state.credit(bidder, "LPC", 100)
	auc.state.credit(auc.vault, "ATOM", 20)

	id, err := auc.engine.CreateAuction(auc.admin, "ATOM", big.NewInt(20))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := auc.engine.PlaceBid(bidder, id, big.NewInt(40)); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	*auc.now += DefaultDuration
	if err := auc.engine.EndAuction(auc.admin, id); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	if _, err := auc.engine.WithdrawFunds(bidder, treasury); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	amount, err := auc.engine.WithdrawFunds(auc.admin, treasury)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if amount.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected 40 withdrawn, got %s", amount)
	}
	held, _ := auc.state.BalanceOf(treasury, "LPC")
	if held.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected treasury to hold 40, got %s", held)
	}

	again, err := auc.engine.WithdrawFunds(auc.admin, treasury)
	if err != nil {
		t.Fatalf("second withdraw failed: %v", err)
	}
	if again.Sign() != 0 {
		t.Fatalf("expected nothing left to withdraw, got %s", again)
	}
}
