package auction

import (
	"math/big"
	"strconv"

	"lendpool/core/types"
	"lendpool/crypto"
)

const (
	EventTypeAuctionCreated = "auction.created"
	EventTypeBidPlaced      = "auction.bidPlaced"
	EventTypeAuctionEnded   = "auction.ended"
	EventTypeFundsWithdrawn = "auction.fundsWithdrawn"
)

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newCreatedEvent(a *Auction) auctionEvent {
	return auctionEvent{evt: &types.Event{Type: EventTypeAuctionCreated, Attributes: map[string]string{
		"auctionId": strconv.FormatUint(a.ID, 10),
		"asset":     a.Asset,
		"amount":    bigAttr(a.Amount),
		"startTime": strconv.FormatInt(a.StartTime, 10),
	}}}
}

func newBidPlacedEvent(a *Auction) auctionEvent {
	attrs := map[string]string{
		"auctionId": strconv.FormatUint(a.ID, 10),
		"bid":       bigAttr(a.HighestBid),
	}
	if a.HighestBidder != nil {
		attrs["bidder"] = a.HighestBidder.String()
	}
	return auctionEvent{evt: &types.Event{Type: EventTypeBidPlaced, Attributes: attrs}}
}

func newEndedEvent(a *Auction) auctionEvent {
	attrs := map[string]string{
		"auctionId": strconv.FormatUint(a.ID, 10),
		"asset":     a.Asset,
		"amount":    bigAttr(a.Amount),
		"bid":       bigAttr(a.HighestBid),
		"sold":      strconv.FormatBool(a.HighestBidder != nil),
	}
	if a.HighestBidder != nil {
		attrs["winner"] = a.HighestBidder.String()
	}
	return auctionEvent{evt: &types.Event{Type: EventTypeAuctionEnded, Attributes: attrs}}
}

func newFundsWithdrawnEvent(recipient crypto.Address, amount *big.Int) auctionEvent {
	return auctionEvent{evt: &types.Event{Type: EventTypeFundsWithdrawn, Attributes: map[string]string{
		"recipient": recipient.String(),
		"amount":    bigAttr(amount),
	}}}
}
