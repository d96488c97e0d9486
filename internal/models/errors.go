package models

import "errors"

var (
	// ErrInsufficientFunds is returned when a hold or debit would exceed the
	// wallet's available balance. Nothing is written.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletInactive is returned for holds and top-ups against a
	// deactivated wallet.
	ErrWalletInactive = errors.New("wallet is not active")

	// ErrWalletNotFound is returned when the wallet id resolves to nothing.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrHoldNotFound is returned by capture/release when no HOLD exists for
	// the group.
	ErrHoldNotFound = errors.New("hold not found for group")

	// ErrHoldAlreadyResolved is returned when the group's hold was already
	// resolved by the other operation (captured when releasing, or vice
	// versa). Replaying the same operation is a no-op instead.
	ErrHoldAlreadyResolved = errors.New("hold already resolved")

	// ErrEntryNotFound is returned when a psp reference or group resolves to
	// no ledger entries.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrInvalidSignature is returned when a webhook payload fails HMAC
	// verification. The payload is never parsed past this point.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrDuplicateDelivery is returned when a webhook payload hash was
	// already recorded against the transaction group.
	ErrDuplicateDelivery = errors.New("duplicate webhook delivery")

	// ErrPayloadMismatch is returned when a replayed reference carries a
	// different amount than the ledger recorded.
	ErrPayloadMismatch = errors.New("payload does not match recorded entries")

	// ErrLedgerImbalance means money was created or destroyed. It is fatal
	// and must never be swallowed or auto-corrected.
	ErrLedgerImbalance = errors.New("ledger invariant violated: debits do not equal credits")
)
