package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saferide/ridepay/internal/domain"
)

// Wallet is the identity record for a user's funds. It deliberately carries
// no balance column: balances are always derived from ledger entries.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// LedgerEntry is one immutable monetary fact. Amount, direction and group are
// fixed at construction; only Status may advance (monotonically) and Note may
// accumulate append-style annotations.
type LedgerEntry struct {
	ID       uuid.UUID `json:"id"`
	GroupID  uuid.UUID `json:"group_id"`
	WalletID *uuid.UUID `json:"wallet_id,omitempty"` // nil for system legs

	Type         string `json:"type"`
	Direction    string `json:"direction"`
	ActorKind    string `json:"actor_kind"`
	SystemWallet string `json:"system_wallet,omitempty"` // MASTER or COMMISSION when ActorKind is SYSTEM

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	PspRef   string          `json:"psp_ref,omitempty"`

	// Point-in-time snapshots captured at write time. Audit only; never read
	// authoritatively.
	BeforeAvail   decimal.Decimal `json:"before_avail"`
	AfterAvail    decimal.Decimal `json:"after_avail"`
	BeforePending decimal.Decimal `json:"before_pending"`
	AfterPending  decimal.Decimal `json:"after_pending"`

	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserEntry builds an entry against a user wallet.
func NewUserEntry(walletID, groupID uuid.UUID, entryType, direction string, amount decimal.Decimal) *LedgerEntry {
	w := walletID
	return &LedgerEntry{
		ID:        uuid.New(),
		GroupID:   groupID,
		WalletID:  &w,
		Type:      entryType,
		Direction: direction,
		ActorKind: domain.ActorKindUser,
		Amount:    amount,
		Currency:  domain.DefaultCurrency,
		Status:    domain.StatusPending,
	}
}

// NewSystemEntry builds an entry against a system ledger account.
func NewSystemEntry(systemWallet string, groupID uuid.UUID, entryType, direction string, amount decimal.Decimal) *LedgerEntry {
	return &LedgerEntry{
		ID:           uuid.New(),
		GroupID:      groupID,
		Type:         entryType,
		Direction:    direction,
		ActorKind:    domain.ActorKindSystem,
		SystemWallet: systemWallet,
		Amount:       amount,
		Currency:     domain.DefaultCurrency,
		Status:       domain.StatusPending,
	}
}

// Terminal reports whether the entry has reached a final status.
func (e *LedgerEntry) Terminal() bool {
	return domain.TerminalStatus(e.Status)
}

// FareBreakdown is the fare input handed to the pricing collaborator at
// settlement time.
type FareBreakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Currency string          `json:"currency"`
}

// FareSplit is what pricing returns: how the captured fare divides between
// the driver and the marketplace commission.
type FareSplit struct {
	RiderPay     decimal.Decimal `json:"rider_pay"`
	DriverPayout decimal.Decimal `json:"driver_payout"`
	Commission   decimal.Decimal `json:"commission"`
}
