package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"lendpool/crypto"
	"lendpool/native/auction"
)

var errBadRequest = errors.New("rpc: bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return badRequest("invalid payload: %v", err)
	}
	return nil
}

func parseAddress(field, value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, badRequest("invalid %s: %v", field, err)
	}
	return addr, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, badRequest("invalid %s: not a base-10 integer", field)
	}
	return amount, nil
}

func parseAuctionID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid auction id %q", raw)
	}
	return id, nil
}

type depositRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) error {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.Deposit(caller, req.Asset, amount); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deposited"})
	return nil
}

type withdrawRequest struct {
	Caller          string `json:"caller"`
	CollateralAsset string `json:"collateralAsset"`
	DebtAsset       string `json:"debtAsset"`
	Amount          string `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) error {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.Withdraw(caller, req.CollateralAsset, req.DebtAsset, amount); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
	return nil
}

type borrowRequest struct {
	Caller          string `json:"caller"`
	CollateralAsset string `json:"collateralAsset"`
	BorrowAsset     string `json:"borrowAsset"`
	Amount          string `json:"amount"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) error {
	var req borrowRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.Borrow(caller, req.CollateralAsset, req.BorrowAsset, amount); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "borrowed"})
	return nil
}

type repayRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) error {
	var req repayRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.Repay(caller, req.Asset, amount); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "repaid"})
	return nil
}

type liquidateRequest struct {
	Liquidator      string `json:"liquidator"`
	Account         string `json:"account"`
	CollateralAsset string `json:"collateralAsset"`
	DebtAsset       string `json:"debtAsset"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) error {
	var req liquidateRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	liquidator, err := parseAddress("liquidator", req.Liquidator)
	if err != nil {
		return err
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.Liquidate(liquidator, account, req.CollateralAsset, req.DebtAsset); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "liquidated"})
	return nil
}

type distributeRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleDistributeRewards(w http.ResponseWriter, r *http.Request) error {
	var req distributeRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.DistributeRewards(caller, recipient); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "distributed"})
	return nil
}

type positionResponse struct {
	Account    string `json:"account"`
	Asset      string `json:"asset"`
	Collateral string `json:"collateral"`
	Principal  string `json:"principal"`
	Interest   string `json:"interest"`
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) error {
	account, err := parseAddress("account", r.URL.Query().Get("account"))
	if err != nil {
		return err
	}
	asset := strings.TrimSpace(r.URL.Query().Get("asset"))
	if asset == "" {
		return badRequest("asset query parameter required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger := s.pool.Ledger()
	collateral, err := ledger.CollateralBalance(account, asset)
	if err != nil {
		return err
	}
	principal, err := ledger.DebtPrincipal(account, asset)
	if err != nil {
		return err
	}
	interest, err := ledger.AccruedInterest(account, asset)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, positionResponse{
		Account:    account.String(),
		Asset:      strings.ToUpper(asset),
		Collateral: collateral.String(),
		Principal:  principal.String(),
		Interest:   interest.String(),
	})
	return nil
}

func (s *Server) handleRewards(w http.ResponseWriter, _ *http.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, err := s.pool.RewardPoolBalance()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"rewardPool": pool.String()})
	return nil
}

type whitelistRequest struct {
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	Whitelisted bool   `json:"whitelisted"`
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) error {
	var req whitelistRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.SetWhitelisted(caller, req.Asset, req.Whitelisted); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	return nil
}

type priceRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Price  string `json:"price"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) error {
	var req priceRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.UpdatePrice(caller, req.Asset, price); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	return nil
}

type mintRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
}

// handleMint credits balance into an account for operational seeding.
// Authorized callers only.
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) error {
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	asset := strings.ToUpper(strings.TrimSpace(req.Asset))
	if asset == "" {
		return badRequest("asset must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.Credit(recipient, asset, amount); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "credited"})
	return nil
}

type createAuctionRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request) error {
	var req createAuctionRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.auctions.CreateAuction(caller, req.Asset, amount)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
	return nil
}

type bidRequest struct {
	Bidder string `json:"bidder"`
	Amount string `json:"amount"`
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) error {
	id, err := parseAuctionID(r)
	if err != nil {
		return err
	}
	var req bidRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	bidder, err := parseAddress("bidder", req.Bidder)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.auctions.PlaceBid(bidder, id, amount); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "bid placed"})
	return nil
}

type endAuctionRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleEndAuction(w http.ResponseWriter, r *http.Request) error {
	id, err := parseAuctionID(r)
	if err != nil {
		return err
	}
	var req endAuctionRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.auctions.EndAuction(caller, id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
	return nil
}

type withdrawFundsRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleWithdrawFunds(w http.ResponseWriter, r *http.Request) error {
	var req withdrawFundsRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, err := s.auctions.WithdrawFunds(caller, recipient)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"withdrawn": amount.String()})
	return nil
}

type auctionResponse struct {
	ID            uint64 `json:"id"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	StartTime     int64  `json:"startTime"`
	HighestBidder string `json:"highestBidder,omitempty"`
	HighestBid    string `json:"highestBid"`
	Ended         bool   `json:"ended"`
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) error {
	id, err := parseAuctionID(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	a, err := s.auctions.GetAuction(id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, renderAuction(a))
	return nil
}

func renderAuction(a *auction.Auction) auctionResponse {
	resp := auctionResponse{
		ID:        a.ID,
		Asset:     a.Asset,
		Amount:    a.Amount.String(),
		StartTime: a.StartTime,
		Ended:     a.Ended,
	}
	if a.HighestBid != nil {
		resp.HighestBid = a.HighestBid.String()
	}
	if a.HighestBidder != nil {
		resp.HighestBidder = a.HighestBidder.String()
	}
	return resp
}
