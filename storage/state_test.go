package storage

import (
	"errors"
	"math/big"
	"testing"

	"lendpool/crypto"
	"lendpool/native/auction"
	"lendpool/native/lending"
)

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = suffix
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil || string(got) != "v" {
		t.Fatalf("get returned %q, %v", got, err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	state := NewState(NewMemDB())
	addr := makeAddress(0x01)

	missing, err := state.CollateralGet(addr, "ATOM")
	if err != nil || missing != nil {
		t.Fatalf("expected nil position for missing record, got %+v, %v", missing, err)
	}

	pos := &lending.CollateralPosition{Account: addr, Asset: "ATOM", Amount: big.NewInt(150)}
	if err := state.CollateralPut(pos); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	loaded, err := state.CollateralGet(addr, "ATOM")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded.Amount.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected amount 150, got %s", loaded.Amount)
	}

	debt := &lending.DebtPosition{Account: addr, Asset: "USDX", Principal: big.NewInt(100), LastAccrual: 42}
	if err := state.DebtPut(debt); err != nil {
		t.Fatalf("debt put failed: %v", err)
	}
	loadedDebt, err := state.DebtGet(addr, "USDX")
	if err != nil {
		t.Fatalf("debt get failed: %v", err)
	}
	if loadedDebt.Principal.Cmp(big.NewInt(100)) != 0 || loadedDebt.LastAccrual != 42 {
		t.Fatalf("unexpected debt record: %+v", loadedDebt)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	state := NewState(NewMemDB())
	alice := makeAddress(0x02)
	bob := makeAddress(0x03)

	if err := state.Transfer(alice, bob, "LPC", big.NewInt(10)); err == nil {
		t.Fatal("expected insufficient balance error")
	}
	if err := state.Credit(alice, "LPC", big.NewInt(100)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if err := state.Transfer(alice, bob, "LPC", big.NewInt(40)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	aliceBal, _ := state.BalanceOf(alice, "LPC")
	bobBal, _ := state.BalanceOf(bob, "LPC")
	if aliceBal.Cmp(big.NewInt(60)) != 0 || bobBal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected balances %s / %s", aliceBal, bobBal)
	}
}

func TestSnapshotRevertRestoresPriorValues(t *testing.T) {
	state := NewState(NewMemDB())
	alice := makeAddress(0x04)
	bob := makeAddress(0x05)

	if err := state.Credit(alice, "LPC", big.NewInt(100)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	snap := state.Snapshot()

	if err := state.Transfer(alice, bob, "LPC", big.NewInt(70)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if err := state.SetRewardPool(big.NewInt(9)); err != nil {
		t.Fatalf("set reward pool failed: %v", err)
	}
	if err := state.SetPrice("ATOM", big.NewInt(5)); err != nil {
		t.Fatalf("set price failed: %v", err)
	}

	state.RevertToSnapshot(snap)

	aliceBal, _ := state.BalanceOf(alice, "LPC")
	if aliceBal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected restored balance 100, got %s", aliceBal)
	}
	bobBal, _ := state.BalanceOf(bob, "LPC")
	if bobBal.Sign() != 0 {
		t.Fatalf("expected restored balance 0, got %s", bobBal)
	}
	pool, _ := state.RewardPool()
	if pool.Sign() != 0 {
		t.Fatalf("expected restored reward pool 0, got %s", pool)
	}
	// The price key did not exist before the snapshot; revert removes it.
	if _, err := state.Price("ATOM"); err == nil {
		t.Fatal("expected price removed by revert")
	}
}

func TestNestedSnapshots(t *testing.T) {
	state := NewState(NewMemDB())
	addr := makeAddress(0x06)

	if err := state.Credit(addr, "LPC", big.NewInt(10)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	outer := state.Snapshot()
	if err := state.Credit(addr, "LPC", big.NewInt(10)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	inner := state.Snapshot()
	if err := state.Credit(addr, "LPC", big.NewInt(10)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	state.RevertToSnapshot(inner)
	bal, _ := state.BalanceOf(addr, "LPC")
	if bal.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("expected 20 after inner revert, got %s", bal)
	}

	state.RevertToSnapshot(outer)
	bal, _ = state.BalanceOf(addr, "LPC")
	if bal.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 10 after outer revert, got %s", bal)
	}
}

func TestAuctionRecordRoundTrip(t *testing.T) {
	state := NewState(NewMemDB())
	bidder := makeAddress(0x07)

	first, err := state.NextAuctionID()
	if err != nil || first != 1 {
		t.Fatalf("expected first id 1, got %d, %v", first, err)
	}
	second, err := state.NextAuctionID()
	if err != nil || second != 2 {
		t.Fatalf("expected second id 2, got %d, %v", second, err)
	}

	record := &auction.Auction{
		ID:            first,
		Asset:         "ATOM",
		Amount:        big.NewInt(20),
		StartTime:     10_000,
		HighestBidder: &bidder,
		HighestBid:    big.NewInt(40),
	}
	if err := state.AuctionPut(record); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	loaded, err := state.AuctionGet(first)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded.Asset != "ATOM" || loaded.Amount.Cmp(big.NewInt(20)) != 0 || loaded.StartTime != 10_000 {
		t.Fatalf("unexpected auction record: %+v", loaded)
	}
	if loaded.HighestBidder == nil || !loaded.HighestBidder.Equal(bidder) {
		t.Fatal("expected bidder preserved")
	}
	if loaded.HighestBid.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected bid 40, got %s", loaded.HighestBid)
	}

	missing, err := state.AuctionGet(99)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing auction, got %+v, %v", missing, err)
	}
}
