package httpx

import (
	"errors"
	"net/http"

	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

// RespondError maps ledger taxonomy errors to HTTP problem responses. The
// detail carries the exact taxonomy reason so clients can decide whether to
// refresh a nonce, top up credits, or abandon the request.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrExpiredRequest):
		Problem(w, http.StatusBadRequest, "Expired Request", err.Error())
	case errors.Is(err, shared.ErrUnauthorizedSigner):
		Problem(w, http.StatusForbidden, "Unauthorized Signer", err.Error())
	case errors.Is(err, shared.ErrInvalidNonce):
		Problem(w, http.StatusConflict, "Invalid Nonce", err.Error())
	case errors.Is(err, shared.ErrInsufficientCredits):
		Problem(w, http.StatusPaymentRequired, "Insufficient Credits", err.Error())
	case errors.Is(err, shared.ErrLengthMismatch):
		Problem(w, http.StatusBadRequest, "Length Mismatch", err.Error())
	case errors.Is(err, shared.ErrUnknownOperation):
		Problem(w, http.StatusBadRequest, "Unknown Operation", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
