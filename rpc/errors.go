package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"lendpool/native/auction"
	nativecommon "lendpool/native/common"
	"lendpool/native/lending"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusForError maps domain errors onto HTTP status codes. Validation and
// precondition failures map to 400, capability failures to 403, missing
// records to 404, and state conflicts to 409.
func statusForError(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, lending.ErrInvalidAmount),
		errors.Is(err, lending.ErrAssetNotWhitelisted),
		errors.Is(err, lending.ErrPriceUnavailable),
		errors.Is(err, auction.ErrInvalidAmount),
		errors.Is(err, auction.ErrBidTooLow):
		return http.StatusBadRequest
	case errors.Is(err, nativecommon.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrAuctionNotFound):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrRepaymentTooHigh),
		errors.Is(err, lending.ErrNoActiveLoan),
		errors.Is(err, lending.ErrPositionHealthy),
		errors.Is(err, lending.ErrNoRewardsToDistribute),
		errors.Is(err, lending.ErrTransferFailed),
		errors.Is(err, lending.ErrFlashLoanNotRepaid),
		errors.Is(err, auction.ErrAuctionEnded),
		errors.Is(err, auction.ErrAuctionAlreadyEnded),
		errors.Is(err, auction.ErrAuctionNotYetEndable),
		errors.Is(err, auction.ErrTransferFailed),
		errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
