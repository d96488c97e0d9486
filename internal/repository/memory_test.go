package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/models"
)

func seedWallet(t *testing.T, store *MemoryStore) *models.Wallet {
	t.Helper()
	w := &models.Wallet{ID: uuid.New(), UserID: uuid.New(), IsActive: true}
	err := store.RunInTx(context.Background(), func(tx Tx) error {
		return tx.CreateWallet(context.Background(), w)
	})
	require.NoError(t, err)
	return w
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	w := seedWallet(t, store)

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(tx Tx) error {
		e := models.NewUserEntry(w.ID, uuid.New(), domain.EntryTypeTopup, domain.DirectionIn, domain.VND(100000))
		if err := tx.CreateEntry(ctx, e); err != nil {
			return err
		}
		if err := tx.SetWalletActive(ctx, w.ID, false); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Neither the entry nor the wallet flip survive the rollback.
	entries, err := store.Reader().EntriesByWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Empty(t, entries)

	got, err := store.Reader().GetWallet(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)
}

func TestGetWalletNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Reader().GetWallet(context.Background(), uuid.New())
	require.ErrorIs(t, err, models.ErrWalletNotFound)
}

func TestAppendEntryNoteAccumulates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	w := seedWallet(t, store)

	e := models.NewUserEntry(w.ID, uuid.New(), domain.EntryTypeTopup, domain.DirectionIn, domain.VND(100000))
	e.Note = "TOPUP_OC1_100000"
	require.NoError(t, store.RunInTx(ctx, func(tx Tx) error { return tx.CreateEntry(ctx, e) }))

	require.NoError(t, store.RunInTx(ctx, func(tx Tx) error {
		return tx.AppendEntryNote(ctx, e.ID, "WHK:deadbeef00000000")
	}))

	entries, err := store.Reader().EntriesByGroup(ctx, e.GroupID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "TOPUP_OC1_100000\nWHK:deadbeef00000000", entries[0].Note)

	err = store.RunInTx(ctx, func(tx Tx) error {
		return tx.AppendEntryNote(ctx, uuid.New(), "orphan")
	})
	require.ErrorIs(t, err, models.ErrEntryNotFound)
}

func TestLedgerSumsCountOnlySettledEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	w := seedWallet(t, store)

	write := func(entryType, direction, status string, amount int64) {
		e := models.NewUserEntry(w.ID, uuid.New(), entryType, direction, domain.VND(amount))
		e.Status = status
		require.NoError(t, store.RunInTx(ctx, func(tx Tx) error { return tx.CreateEntry(ctx, e) }))
	}

	write(domain.EntryTypeTopup, domain.DirectionIn, domain.StatusSuccess, 500000)
	write(domain.EntryTypeTopup, domain.DirectionIn, domain.StatusPending, 900000)
	write(domain.EntryTypePayout, domain.DirectionOut, domain.StatusSuccess, 200000)
	write(domain.EntryTypeHold, domain.DirectionOut, domain.StatusSuccess, 100000)

	in, out, err := store.Reader().LedgerSums(ctx, []string{domain.EntryTypeHold, domain.EntryTypeReleaseHold})
	require.NoError(t, err)
	require.True(t, domain.VND(500000).Equal(in), "in=%s", in)
	require.True(t, domain.VND(200000).Equal(out), "out=%s", out)

	in, _, err = store.Reader().LedgerSums(ctx, []string{domain.EntryTypeHold, domain.EntryTypeReleaseHold, domain.EntryTypeTopup, domain.EntryTypePayout})
	require.NoError(t, err)
	require.True(t, in.IsZero())
}

func TestPendingGatewayRefsWindowAndMarker(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	w := seedWallet(t, store)
	now := time.Now()

	write := func(ref, note, status string, age time.Duration) {
		e := models.NewUserEntry(w.ID, uuid.New(), domain.EntryTypePayout, domain.DirectionOut, domain.VND(80000))
		e.Status = status
		e.PspRef = ref
		e.Note = note
		e.CreatedAt = now.Add(-age)
		require.NoError(t, store.RunInTx(ctx, func(tx Tx) error { return tx.CreateEntry(ctx, e) }))
	}

	write("PO-old", "PAYOUT_PO-old_80000", domain.StatusPending, time.Hour)
	write("PO-fresh", "PAYOUT_PO-fresh_80000", domain.StatusPending, time.Minute)
	write("PO-stale", "PAYOUT_PO-stale_80000", domain.StatusPending, 48*time.Hour)
	write("PO-done", "PAYOUT_PO-done_80000", domain.StatusSuccess, time.Hour)
	write("PO-unmarked", "", domain.StatusPending, time.Hour)

	refs, err := store.Reader().PendingGatewayRefs(ctx, domain.EntryTypePayout, "PAYOUT_",
		now.Add(-30*time.Minute), now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"PO-old"}, refs)
}

func TestPendingGatewayRefsHonorsLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	w := seedWallet(t, store)
	now := time.Now()

	for _, ref := range []string{"PO-a", "PO-b", "PO-c"} {
		e := models.NewUserEntry(w.ID, uuid.New(), domain.EntryTypePayout, domain.DirectionOut, domain.VND(80000))
		e.PspRef = ref
		e.Note = "PAYOUT_" + ref + "_80000"
		e.CreatedAt = now.Add(-time.Hour)
		require.NoError(t, store.RunInTx(ctx, func(tx Tx) error { return tx.CreateEntry(ctx, e) }))
	}

	refs, err := store.Reader().PendingGatewayRefs(ctx, domain.EntryTypePayout, "PAYOUT_",
		now.Add(-30*time.Minute), now.Add(-24*time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, refs, 2)
}
