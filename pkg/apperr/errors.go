package apperr

import "errors"

// Sentinel errors for the service core. Usecase layers wrap these with
// fmt.Errorf("...: %w", err) context; handlers map them with errors.Is.
var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks a state-machine guard violation or a lost
	// acceptance race. Retrying the same attempt must keep failing.
	ErrConflict = errors.New("conflict")

	// ErrNotFound covers both missing resources and resources the caller
	// is not allowed to see. Ownership failures surface as not-found so a
	// probe cannot distinguish another user's record from nothing.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is for actor checks that do not leak existence,
	// e.g. the assigned provider check on an already-visible booking.
	ErrForbidden = errors.New("forbidden")

	// ErrDecryption marks tampered ciphertext or a key mismatch.
	ErrDecryption = errors.New("decryption failed")

	// ErrPricingUnavailable means no provider quote and no budget exist
	// when a payment amount is needed.
	ErrPricingUnavailable = errors.New("no price available")

	// Gateway errors.
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrMalformedPayload   = errors.New("malformed webhook payload")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)
