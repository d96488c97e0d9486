package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/models"
	"github.com/saferide/ridepay/internal/repository"
)

// BalanceCalculator derives wallet balances from the ledger at query time.
// There is no mutable balance counter anywhere: every answer is an aggregate
// over immutable entries.
type BalanceCalculator struct {
	store repository.Store
	cache *repository.BalanceCache
}

func NewBalanceCalculator(store repository.Store, cache *repository.BalanceCache) *BalanceCalculator {
	return &BalanceCalculator{store: store, cache: cache}
}

// Available returns the wallet's spendable balance. A wallet with no entries
// has a zero balance; unknown wallet ids are not an error here.
func (c *BalanceCalculator) Available(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	if cached, ok := c.cache.Get(ctx, walletID); ok {
		return cached, nil
	}
	entries, err := c.store.Reader().EntriesByWallet(ctx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	avail, _ := deriveBalances(entries)
	c.cache.Set(ctx, walletID, avail)
	return avail, nil
}

// Pending returns the total of the wallet's open holds.
func (c *BalanceCalculator) Pending(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	entries, err := c.store.Reader().EntriesByWallet(ctx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	_, pending := deriveBalances(entries)
	return pending, nil
}

// balancesInTx computes both balances inside an open unit of work, so a
// check-and-write (hold gating) cannot race a concurrent writer.
func balancesInTx(ctx context.Context, tx repository.Tx, walletID uuid.UUID) (avail, pending decimal.Decimal, err error) {
	entries, err := tx.EntriesByWallet(ctx, walletID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	avail, pending = deriveBalances(entries)
	return avail, pending, nil
}

// deriveBalances folds a wallet's entries into (available, pending).
//
// Inflows count once SUCCESS. Outflows count from the moment they are
// recorded, whatever their status: a failed outflow is compensated by a
// REFUND entry, never silently un-counted. HOLD and RELEASE_HOLD legs are
// reservation markers: an open hold (no CAPTURE_FARE/RELEASE_HOLD sibling in
// its group) is subtracted from available and reported as pending.
func deriveBalances(entries []models.LedgerEntry) (avail, pending decimal.Decimal) {
	resolved := make(map[uuid.UUID]struct{})
	for i := range entries {
		e := &entries[i]
		if e.Type == domain.EntryTypeCaptureFare || e.Type == domain.EntryTypeReleaseHold {
			resolved[e.GroupID] = struct{}{}
		}
	}

	in, out, held := decimal.Zero, decimal.Zero, decimal.Zero
	for i := range entries {
		e := &entries[i]
		switch {
		case e.Type == domain.EntryTypeHold:
			if _, ok := resolved[e.GroupID]; !ok {
				held = held.Add(e.Amount)
			}
		case e.Type == domain.EntryTypeReleaseHold:
			// marker only
		case e.Direction == domain.DirectionIn:
			if e.Status == domain.StatusSuccess {
				in = in.Add(e.Amount)
			}
		case e.Direction == domain.DirectionOut:
			out = out.Add(e.Amount)
		}
	}
	return in.Sub(out).Sub(held), held
}

// openHold returns the group's HOLD leg if it has not been captured or
// released yet. The second return distinguishes "no hold" from "resolved".
func openHold(group []models.LedgerEntry) (hold *models.LedgerEntry, resolution *models.LedgerEntry) {
	for i := range group {
		switch group[i].Type {
		case domain.EntryTypeHold:
			hold = &group[i]
		case domain.EntryTypeCaptureFare, domain.EntryTypeReleaseHold:
			if resolution == nil {
				resolution = &group[i]
			}
		}
	}
	return hold, resolution
}
