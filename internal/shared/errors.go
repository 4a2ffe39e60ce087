package shared

import "errors"

// Ledger error taxonomy. Every rejected ledger operation surfaces exactly one
// of these so callers can decide between refreshing the nonce, topping up the
// balance, or abandoning the request.
var (
	// ErrExpiredRequest indicates the request deadline has passed. Checked
	// before signature recovery, so an expired request never reports a
	// signer problem.
	ErrExpiredRequest = errors.New("expired deadline")
	// ErrUnauthorizedSigner indicates the recovered signer lacks the role
	// required to authorize the operation.
	ErrUnauthorizedSigner = errors.New("unauthorized signer")
	// ErrInvalidNonce indicates the request nonce does not match the
	// account's current nonce. Retriable after re-reading the nonce.
	ErrInvalidNonce = errors.New("invalid nonce")
	// ErrInsufficientCredits indicates the account balance is below the
	// operation cost.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrLengthMismatch indicates batch input arrays of unequal length.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrUnknownOperation indicates an operation-cost lookup miss.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrUnauthorized indicates the acting account lacks a required role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
