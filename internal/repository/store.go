package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saferide/ridepay/internal/models"
)

// Tx is the data-access surface available inside one unit of work. Every
// wallet primitive and webhook/poll resolution runs against exactly one Tx;
// partial writes are never observable outside it.
type Tx interface {
	CreateWallet(ctx context.Context, w *models.Wallet) error
	GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	// GetWalletForUpdate acquires an exclusive lock on the wallet row for the
	// remainder of the unit of work. Balance checks that gate a write must
	// happen under this lock.
	GetWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	SetWalletActive(ctx context.Context, id uuid.UUID, active bool) error

	CreateEntry(ctx context.Context, e *models.LedgerEntry) error
	EntriesByWallet(ctx context.Context, walletID uuid.UUID) ([]models.LedgerEntry, error)
	EntriesByGroup(ctx context.Context, groupID uuid.UUID) ([]models.LedgerEntry, error)
	// EntriesByGroupForUpdate locks the group's entries so read-then-decide
	// operations (capture, release, webhook resolution) serialize per group.
	EntriesByGroupForUpdate(ctx context.Context, groupID uuid.UUID) ([]models.LedgerEntry, error)
	EntriesByPspRef(ctx context.Context, pspRef string) ([]models.LedgerEntry, error)
	UpdateEntryStatus(ctx context.Context, id uuid.UUID, status string) (int64, error)
	// AppendEntryNote adds an annotation line to the entry's note. Notes are
	// append-style; history is never rewritten.
	AppendEntryNote(ctx context.Context, id uuid.UUID, note string) error

	// LedgerSums returns the total IN and OUT amounts over SUCCESS entries,
	// excluding the given entry types.
	LedgerSums(ctx context.Context, excludeTypes []string) (in, out decimal.Decimal, err error)

	// PendingGatewayRefs returns distinct psp references of entries of the
	// given type still PENDING/PROCESSING, tagged with marker in their note,
	// created inside the (newerThan, olderThan] age window.
	PendingGatewayRefs(ctx context.Context, entryType, marker string, olderThan, newerThan time.Time, limit int32) ([]string, error)
}

// Store provides transaction scoping over the ledger.
type Store interface {
	// Reader returns a non-transactional query surface.
	Reader() Tx
	// RunInTx executes fn within one atomic unit of work.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}
