package chanengine

import "fmt"

// Error kinds surfaced to the caller of the public local API (spec.md §7).
// Inbound transport handlers never return these; a malicious peer must not
// be able to disrupt a node by sending it garbage, so those paths drop
// silently and only log (see notify.go, receive.go).
var (
	// ErrUnknownChannel is returned when a channel id isn't in the
	// registry.
	ErrUnknownChannel = fmt.Errorf("chanengine: unknown channel")

	// ErrBadArgument is returned for a non-positive amount.
	ErrBadArgument = fmt.Errorf("chanengine: bad argument")

	// ErrInsufficientFunds is returned when the ledger balance or
	// in-channel balance is too low for the requested operation.
	ErrInsufficientFunds = fmt.Errorf("chanengine: insufficient funds")

	// ErrAlreadyClosed is returned on a double-close attempt.
	ErrAlreadyClosed = fmt.Errorf("chanengine: channel already closed")

	// ErrCannotWithdrawYet is returned when the arbiter rejects the
	// getBalance view (appeal window not elapsed, or not a participant).
	ErrCannotWithdrawYet = fmt.Errorf("chanengine: cannot withdraw yet")

	// ErrLedgerFailure is returned when a submitted transaction's receipt
	// indicates a revert or network error that wasn't expected to
	// revert.
	ErrLedgerFailure = fmt.Errorf("chanengine: ledger failure")
)
