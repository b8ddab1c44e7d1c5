package auction

import "errors"

var (
	// ErrAuctionNotFound rejects operations against an unknown auction id.
	ErrAuctionNotFound = errors.New("auction engine: auction not found")
	// ErrAuctionEnded rejects bids on an auction that has already ended.
	ErrAuctionEnded = errors.New("auction engine: bidding closed")
	// ErrAuctionAlreadyEnded rejects a second end transition.
	ErrAuctionAlreadyEnded = errors.New("auction engine: auction already ended")
	// ErrAuctionNotYetEndable rejects ending before the bidding window elapses.
	ErrAuctionNotYetEndable = errors.New("auction engine: bidding window still open")
	// ErrBidTooLow rejects bids at or below the current highest bid.
	ErrBidTooLow = errors.New("auction engine: bid must exceed highest bid")
	// ErrTransferFailed surfaces a collaborator-level asset transfer failure.
	ErrTransferFailed = errors.New("auction engine: asset transfer failed")
	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = errors.New("auction engine: amount must be positive")

	errNilState      = errors.New("auction engine: state not configured")
	errNilTransfer   = errors.New("auction engine: asset transfer not configured")
	errNilAuthorizer = errors.New("auction engine: authorizer not configured")
)
