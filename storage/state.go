package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"lendpool/crypto"
	"lendpool/native/auction"
	"lendpool/native/lending"
)

// State persists pool records as JSON values under prefixed keys and
// implements the state interfaces consumed by the lending and auction engines,
// plus the asset-transfer and price-oracle collaborators backed by stored
// account balances and quotes.
//
// Writes are journaled: Snapshot returns a revision and RevertToSnapshot
// restores every key touched since, which is how engines abort multi-step
// actions without partial mutation. State is not safe for concurrent use; the
// execution model serializes actions (the rpc layer holds a single mutex).
type State struct {
	db      Database
	journal []journalEntry
}

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// NewState wraps a key-value database.
func NewState(db Database) *State {
	return &State{db: db}
}

const (
	collateralPrefix = "lend/collateral/"
	debtPrefix       = "lend/debt/"
	rewardPoolKey    = "lend/rewards"
	whitelistPrefix  = "lend/whitelist/"
	pricePrefix      = "oracle/price/"
	balancePrefix    = "bank/"
	auctionPrefix    = "auction/item/"
	auctionSeqKey    = "auction/seq"
)

func positionKey(prefix string, addr crypto.Address, asset string) string {
	return prefix + hex.EncodeToString(addr.Bytes()) + "/" + asset
}

func balanceKey(addr crypto.Address, asset string) string {
	return balancePrefix + hex.EncodeToString(addr.Bytes()) + "/" + asset
}

func auctionKey(id uint64) string {
	return fmt.Sprintf("%s%020d", auctionPrefix, id)
}

// Snapshot marks the current journal position.
func (s *State) Snapshot() int {
	return len(s.journal)
}

// RevertToSnapshot undoes every write recorded after the given revision, in
// reverse order.
func (s *State) RevertToSnapshot(revision int) {
	if revision < 0 || revision > len(s.journal) {
		return
	}
	for i := len(s.journal) - 1; i >= revision; i-- {
		entry := s.journal[i]
		if entry.existed {
			_ = s.db.Put([]byte(entry.key), entry.prev)
		} else {
			_ = s.db.Delete([]byte(entry.key))
		}
	}
	s.journal = s.journal[:revision]
}

func (s *State) put(key string, value []byte) error {
	prev, err := s.db.Get([]byte(key))
	switch {
	case err == nil:
		s.journal = append(s.journal, journalEntry{key: key, prev: prev, existed: true})
	case errors.Is(err, ErrNotFound):
		s.journal = append(s.journal, journalEntry{key: key})
	default:
		return err
	}
	return s.db.Put([]byte(key), value)
}

func (s *State) get(key string, out interface{}) (bool, error) {
	raw, err := s.db.Get([]byte(key))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *State) putJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return s.put(key, raw)
}

// --- lending ledger state ---

type collateralRecord struct {
	Amount *big.Int `json:"amount"`
}

type debtRecord struct {
	Principal   *big.Int `json:"principal"`
	LastAccrual int64    `json:"lastAccrual"`
}

func (s *State) CollateralGet(addr crypto.Address, asset string) (*lending.CollateralPosition, error) {
	var rec collateralRecord
	ok, err := s.get(positionKey(collateralPrefix, addr, asset), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.CollateralPosition{Account: addr, Asset: asset, Amount: rec.Amount}, nil
}

func (s *State) CollateralPut(pos *lending.CollateralPosition) error {
	if pos == nil {
		return fmt.Errorf("storage: nil collateral position")
	}
	return s.putJSON(positionKey(collateralPrefix, pos.Account, pos.Asset), collateralRecord{Amount: pos.Amount})
}

func (s *State) DebtGet(addr crypto.Address, asset string) (*lending.DebtPosition, error) {
	var rec debtRecord
	ok, err := s.get(positionKey(debtPrefix, addr, asset), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.DebtPosition{Account: addr, Asset: asset, Principal: rec.Principal, LastAccrual: rec.LastAccrual}, nil
}

func (s *State) DebtPut(pos *lending.DebtPosition) error {
	if pos == nil {
		return fmt.Errorf("storage: nil debt position")
	}
	return s.putJSON(positionKey(debtPrefix, pos.Account, pos.Asset), debtRecord{Principal: pos.Principal, LastAccrual: pos.LastAccrual})
}

// --- lending engine state ---

func (s *State) RewardPool() (*big.Int, error) {
	var pool big.Int
	ok, err := s.get(rewardPoolKey, &pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return &pool, nil
}

func (s *State) SetRewardPool(amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return s.putJSON(rewardPoolKey, amount)
}

func (s *State) IsAssetWhitelisted(asset string) (bool, error) {
	var listed bool
	ok, err := s.get(whitelistPrefix+asset, &listed)
	if err != nil || !ok {
		return false, err
	}
	return listed, nil
}

func (s *State) SetAssetWhitelisted(asset string, whitelisted bool) error {
	return s.putJSON(whitelistPrefix+asset, whitelisted)
}

// --- price oracle ---

func (s *State) Price(asset string) (*big.Int, error) {
	var price big.Int
	ok, err := s.get(pricePrefix+asset, &price)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("storage: no price recorded for %s", asset)
	}
	return &price, nil
}

func (s *State) SetPrice(asset string, price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("storage: price must be positive")
	}
	return s.putJSON(pricePrefix+asset, price)
}

// --- asset transfer / account balances ---

func (s *State) BalanceOf(owner crypto.Address, asset string) (*big.Int, error) {
	var balance big.Int
	ok, err := s.get(balanceKey(owner, asset), &balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return &balance, nil
}

func (s *State) Transfer(from, to crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("storage: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBal, err := s.BalanceOf(from, asset)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("storage: insufficient %s balance for %s", asset, from.String())
	}
	toBal, err := s.BalanceOf(to, asset)
	if err != nil {
		return err
	}
	if err := s.putJSON(balanceKey(from, asset), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return s.putJSON(balanceKey(to, asset), new(big.Int).Add(toBal, amount))
}

// Credit mints balance into an account. Used for genesis funding and the
// administrative mint endpoint.
func (s *State) Credit(owner crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("storage: credit amount must be positive")
	}
	balance, err := s.BalanceOf(owner, asset)
	if err != nil {
		return err
	}
	return s.putJSON(balanceKey(owner, asset), new(big.Int).Add(balance, amount))
}

// --- auction state ---

type auctionRecord struct {
	ID        uint64   `json:"id"`
	Asset     string   `json:"asset"`
	Amount    *big.Int `json:"amount"`
	StartTime int64    `json:"startTime"`
	Bidder    []byte   `json:"bidder,omitempty"`
	Bid       *big.Int `json:"bid"`
	Ended     bool     `json:"ended"`
}

func (s *State) AuctionGet(id uint64) (*auction.Auction, error) {
	var rec auctionRecord
	ok, err := s.get(auctionKey(id), &rec)
	if err != nil || !ok {
		return nil, err
	}
	a := &auction.Auction{
		ID:         rec.ID,
		Asset:      rec.Asset,
		Amount:     rec.Amount,
		StartTime:  rec.StartTime,
		HighestBid: rec.Bid,
		Ended:      rec.Ended,
	}
	if len(rec.Bidder) == crypto.AddressLength {
		bidder := crypto.NewAddress(crypto.AccountPrefix, rec.Bidder)
		a.HighestBidder = &bidder
	}
	return a, nil
}

func (s *State) AuctionPut(a *auction.Auction) error {
	if a == nil {
		return fmt.Errorf("storage: nil auction")
	}
	rec := auctionRecord{
		ID:        a.ID,
		Asset:     a.Asset,
		Amount:    a.Amount,
		StartTime: a.StartTime,
		Bid:       a.HighestBid,
		Ended:     a.Ended,
	}
	if a.HighestBidder != nil {
		rec.Bidder = a.HighestBidder.Bytes()
	}
	return s.putJSON(auctionKey(a.ID), rec)
}

// NextAuctionID allocates the next sequential auction identifier, starting
// at 1.
func (s *State) NextAuctionID() (uint64, error) {
	var seq uint64
	if _, err := s.get(auctionSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := s.putJSON(auctionSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}
