package auction

import (
	"fmt"
	"math/big"
	"strings"

	"lendpool/crypto"
)

// Auction tracks a single time-boxed sale of seized collateral. IDs are
// sequential and never reused. Once Ended flips true the record is immutable.
type Auction struct {
	ID            uint64
	Asset         string
	Amount        *big.Int
	StartTime     int64
	HighestBidder *crypto.Address
	HighestBid    *big.Int
	Ended         bool
}

// Clone returns a deep copy so callers can mutate safely.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Amount != nil {
		clone.Amount = new(big.Int).Set(a.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if a.HighestBid != nil {
		clone.HighestBid = new(big.Int).Set(a.HighestBid)
	} else {
		clone.HighestBid = big.NewInt(0)
	}
	if a.HighestBidder != nil {
		bidder := *a.HighestBidder
		clone.HighestBidder = &bidder
	}
	return &clone
}

func normalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("empty asset symbol")
	}
	return trimmed, nil
}
