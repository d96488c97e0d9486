package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/models"
)

// MemoryStore is an in-process ledger store. Units of work serialize on one
// mutex, which gives every RunInTx the same isolation contract the Postgres
// store provides with row locks. Used by tests and local runs without a
// database.
type MemoryStore struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]models.Wallet
	entries []models.LedgerEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{wallets: make(map[uuid.UUID]models.Wallet)}
}

func (s *MemoryStore) Reader() Tx {
	return &memTx{store: s, lockPerCall: true}
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotWallets := make(map[uuid.UUID]models.Wallet, len(s.wallets))
	for k, v := range s.wallets {
		snapshotWallets[k] = v
	}
	snapshotEntries := make([]models.LedgerEntry, len(s.entries))
	copy(snapshotEntries, s.entries)

	if err := fn(&memTx{store: s}); err != nil {
		// roll back
		s.wallets = snapshotWallets
		s.entries = snapshotEntries
		return err
	}
	return nil
}

type memTx struct {
	store *MemoryStore
	// Reader calls arrive without RunInTx holding the mutex.
	lockPerCall bool
}

func (t *memTx) lock() func() {
	if !t.lockPerCall {
		return func() {}
	}
	t.store.mu.Lock()
	return t.store.mu.Unlock
}

func (t *memTx) CreateWallet(ctx context.Context, w *models.Wallet) error {
	defer t.lock()()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	t.store.wallets[w.ID] = *w
	return nil
}

func (t *memTx) GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	defer t.lock()()
	w, ok := t.store.wallets[id]
	if !ok {
		return nil, models.ErrWalletNotFound
	}
	return &w, nil
}

// GetWalletForUpdate is identical to GetWallet here: the store-wide mutex
// already serializes the whole unit of work.
func (t *memTx) GetWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return t.GetWallet(ctx, id)
}

func (t *memTx) SetWalletActive(ctx context.Context, id uuid.UUID, active bool) error {
	defer t.lock()()
	w, ok := t.store.wallets[id]
	if !ok {
		return models.ErrWalletNotFound
	}
	w.IsActive = active
	t.store.wallets[id] = w
	return nil
}

func (t *memTx) CreateEntry(ctx context.Context, e *models.LedgerEntry) error {
	defer t.lock()()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	t.store.entries = append(t.store.entries, *e)
	return nil
}

func (t *memTx) EntriesByWallet(ctx context.Context, walletID uuid.UUID) ([]models.LedgerEntry, error) {
	defer t.lock()()
	return t.filter(func(e *models.LedgerEntry) bool {
		return e.WalletID != nil && *e.WalletID == walletID
	}), nil
}

func (t *memTx) EntriesByGroup(ctx context.Context, groupID uuid.UUID) ([]models.LedgerEntry, error) {
	defer t.lock()()
	return t.filter(func(e *models.LedgerEntry) bool { return e.GroupID == groupID }), nil
}

func (t *memTx) EntriesByGroupForUpdate(ctx context.Context, groupID uuid.UUID) ([]models.LedgerEntry, error) {
	return t.EntriesByGroup(ctx, groupID)
}

func (t *memTx) EntriesByPspRef(ctx context.Context, pspRef string) ([]models.LedgerEntry, error) {
	defer t.lock()()
	return t.filter(func(e *models.LedgerEntry) bool { return e.PspRef == pspRef }), nil
}

func (t *memTx) UpdateEntryStatus(ctx context.Context, id uuid.UUID, status string) (int64, error) {
	defer t.lock()()
	for i := range t.store.entries {
		if t.store.entries[i].ID == id {
			t.store.entries[i].Status = status
			return 1, nil
		}
	}
	return 0, nil
}

func (t *memTx) AppendEntryNote(ctx context.Context, id uuid.UUID, note string) error {
	defer t.lock()()
	for i := range t.store.entries {
		if t.store.entries[i].ID == id {
			if t.store.entries[i].Note == "" {
				t.store.entries[i].Note = note
			} else {
				t.store.entries[i].Note += "\n" + note
			}
			return nil
		}
	}
	return models.ErrEntryNotFound
}

func (t *memTx) LedgerSums(ctx context.Context, excludeTypes []string) (decimal.Decimal, decimal.Decimal, error) {
	defer t.lock()()
	excluded := make(map[string]struct{}, len(excludeTypes))
	for _, et := range excludeTypes {
		excluded[et] = struct{}{}
	}
	in, out := decimal.Zero, decimal.Zero
	for i := range t.store.entries {
		e := &t.store.entries[i]
		if e.Status != domain.StatusSuccess {
			continue
		}
		if _, skip := excluded[e.Type]; skip {
			continue
		}
		switch e.Direction {
		case domain.DirectionIn:
			in = in.Add(e.Amount)
		case domain.DirectionOut:
			out = out.Add(e.Amount)
		}
	}
	return in, out, nil
}

func (t *memTx) PendingGatewayRefs(ctx context.Context, entryType, marker string, olderThan, newerThan time.Time, limit int32) ([]string, error) {
	defer t.lock()()
	seen := make(map[string]struct{})
	var refs []string
	for i := range t.store.entries {
		e := &t.store.entries[i]
		if e.Type != entryType || e.PspRef == "" {
			continue
		}
		if e.Status != domain.StatusPending && e.Status != domain.StatusProcessing {
			continue
		}
		if marker != "" && !strings.Contains(e.Note, marker) {
			continue
		}
		if e.CreatedAt.After(olderThan) || !e.CreatedAt.After(newerThan) {
			continue
		}
		if _, dup := seen[e.PspRef]; dup {
			continue
		}
		seen[e.PspRef] = struct{}{}
		refs = append(refs, e.PspRef)
		if int32(len(refs)) >= limit {
			break
		}
	}
	sort.Strings(refs)
	return refs, nil
}

func (t *memTx) filter(keep func(*models.LedgerEntry) bool) []models.LedgerEntry {
	var out []models.LedgerEntry
	for i := range t.store.entries {
		if keep(&t.store.entries[i]) {
			out = append(out, t.store.entries[i])
		}
	}
	return out
}
