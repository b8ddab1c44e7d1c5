package lending

import "errors"

var (
	// ErrInsufficientCollateral rejects withdrawals beyond the posted balance
	// and borrows that would leave the position under-collateralized.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrRepaymentTooHigh rejects repayments exceeding principal plus accrued
	// interest.
	ErrRepaymentTooHigh = errors.New("lending engine: repayment exceeds outstanding debt")
	// ErrNoActiveLoan rejects repayments against a zero-debt position.
	ErrNoActiveLoan = errors.New("lending engine: no outstanding debt to repay")
	// ErrTransferFailed surfaces a collaborator-level asset transfer failure.
	ErrTransferFailed = errors.New("lending engine: asset transfer failed")
	// ErrFlashLoanNotRepaid aborts a flash loan whose principal plus fee was
	// not restored within the callback.
	ErrFlashLoanNotRepaid = errors.New("lending engine: flash loan not repaid")
	// ErrPositionHealthy rejects liquidation of a solvent position.
	ErrPositionHealthy = errors.New("lending engine: position not eligible for liquidation")
	// ErrNoRewardsToDistribute rejects distribution when the reward pool is empty.
	ErrNoRewardsToDistribute = errors.New("lending engine: reward pool empty")
	// ErrAssetNotWhitelisted rejects operations on assets outside the whitelist.
	ErrAssetNotWhitelisted = errors.New("lending engine: asset not whitelisted")
	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = errors.New("lending engine: amount must be positive")
	// ErrPriceUnavailable surfaces a missing oracle quote.
	ErrPriceUnavailable = errors.New("lending engine: price unavailable")

	errNilState      = errors.New("lending engine: state not configured")
	errNilLedger     = errors.New("lending engine: ledger not configured")
	errNilRisk       = errors.New("lending engine: risk engine not configured")
	errNilTransfer   = errors.New("lending engine: asset transfer not configured")
	errNilOracle     = errors.New("lending engine: price oracle not configured")
	errNilAuctioneer = errors.New("lending engine: auctioneer not configured")
	errNilPriceStore = errors.New("lending engine: price store not configured")
	errNilAuthorizer = errors.New("lending engine: authorizer not configured")
	errNilCallback   = errors.New("lending engine: flash loan callback not configured")
)
