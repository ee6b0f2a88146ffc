package ledger

import "errors"

var (
	// ErrInvalidTransition means the requested event is not legal from the
	// record's current status. The record is left unchanged.
	ErrInvalidTransition = errors.New("invalid escrow transition")
	// ErrUnauthorized means the caller is not the party the transition
	// requires.
	ErrUnauthorized = errors.New("caller not authorized for this transition")
	// ErrConcurrentModification means the record changed under the caller;
	// re-read and retry.
	ErrConcurrentModification = errors.New("escrow payment modified concurrently")
	// ErrGatewayFailure wraps a payment gateway error. The transition that
	// depended on the call did not commit.
	ErrGatewayFailure = errors.New("payment gateway failure")
	// ErrNotDisputed means a dispute resolution was applied to a record that
	// is not in the disputed state.
	ErrNotDisputed = errors.New("escrow payment is not disputed")
	// ErrDeadlineNotReached means Tick was invoked before the record's
	// expiry deadline.
	ErrDeadlineNotReached = errors.New("expiry deadline not reached")

	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidParties  = errors.New("client and master must be distinct, non-empty ids")
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrInvalidMethod   = errors.New("unsupported payment method")
	ErrEmptyReason     = errors.New("reason must not be empty")
)
