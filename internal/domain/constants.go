package domain

// Entry types
const (
	EntryTypeTopup       = "TOPUP"
	EntryTypeHold        = "HOLD"
	EntryTypeCaptureFare = "CAPTURE_FARE"
	EntryTypeReleaseHold = "RELEASE_HOLD"
	EntryTypeRefund      = "REFUND"
	EntryTypePayout      = "PAYOUT"

	DirectionIn  = "IN"
	DirectionOut = "OUT"

	ActorKindUser   = "USER"
	ActorKindSystem = "SYSTEM"

	// System ledger accounts. MASTER is the gateway-facing liquidity
	// account; COMMISSION accumulates the marketplace's fare cut.
	SystemWalletMaster     = "MASTER"
	SystemWalletCommission = "COMMISSION"

	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"

	DefaultCurrency = "VND"
)

// TerminalStatus reports whether a status can never change again.
func TerminalStatus(status string) bool {
	return status == StatusSuccess || status == StatusFailed
}
