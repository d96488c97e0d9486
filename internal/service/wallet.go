package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/models"
	"github.com/saferide/ridepay/internal/repository"
)

// WalletService exposes the ledger-write primitives: hold, capture, release,
// refund and the direct credit/debit moves the flows build on. It is the only
// component that appends ledger entries outside webhook handling, and every
// primitive is one atomic unit of work.
type WalletService struct {
	store repository.Store
	cache *repository.BalanceCache
}

func NewWalletService(store repository.Store, cache *repository.BalanceCache) *WalletService {
	return &WalletService{store: store, cache: cache}
}

// Hold reserves amount on the wallet for the given group. The hold entry is
// written SUCCESS immediately: the reservation itself is atomic; only its
// capture or release is deferred. Available decreases and pending increases
// by amount. Fails with ErrInsufficientFunds without writing anything if the
// wallet cannot cover it.
func (s *WalletService) Hold(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, groupID uuid.UUID, note string) (*models.LedgerEntry, error) {
	if err := domain.ValidAmount(amount); err != nil {
		return nil, err
	}

	var entry *models.LedgerEntry
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		// Wallet lock held across check-and-write: two concurrent holds can
		// never both pass the balance check against a stale read.
		w, err := tx.GetWalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		if !w.IsActive {
			return fmt.Errorf("wallet %s: %w", walletID, models.ErrWalletInactive)
		}

		if existing, err := tx.EntriesByGroup(ctx, groupID); err != nil {
			return err
		} else if h, _ := openHold(existing); h != nil {
			// A replay must carry the amount already reserved; a retry with a
			// different amount is a caller bug, not a new reservation.
			if !h.Amount.Equal(amount) {
				return fmt.Errorf("group %s: hold recorded for %s, requested %s: %w",
					groupID, h.Amount, amount, models.ErrPayloadMismatch)
			}
			entry = h
			return nil
		}

		avail, pending, err := balancesInTx(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if avail.LessThan(amount) {
			return fmt.Errorf("wallet %s: need %s, have %s: %w",
				walletID, amount, avail, models.ErrInsufficientFunds)
		}

		entry = models.NewUserEntry(walletID, groupID, domain.EntryTypeHold, domain.DirectionOut, amount)
		entry.Status = domain.StatusSuccess
		entry.Note = note
		snapshot(entry, avail, pending, avail.Sub(amount), pending.Add(amount))
		return tx.CreateEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, walletID)
	return entry, nil
}

// CaptureHold resolves a hold into final legs: rider OUT for the captured
// total, driver IN for driverAmount, COMMISSION IN for commissionAmount. The
// captured total may be less than the hold (partial capture, e.g. a
// cancellation fee); the remainder returns to available automatically once
// the hold is closed. Replaying a capture against an already-captured group
// returns the existing legs.
func (s *WalletService) CaptureHold(ctx context.Context, groupID uuid.UUID, driverWalletID uuid.UUID, driverAmount, commissionAmount decimal.Decimal, note string) ([]models.LedgerEntry, error) {
	riderTotal := driverAmount.Add(commissionAmount)
	if err := domain.ValidAmount(riderTotal); err != nil {
		return nil, err
	}
	if driverAmount.IsNegative() || commissionAmount.IsNegative() {
		return nil, fmt.Errorf("capture amounts must not be negative")
	}
	if driverAmount.IsPositive() && driverWalletID == uuid.Nil {
		return nil, fmt.Errorf("driver wallet required for driver payout of %s", driverAmount)
	}

	var legs []models.LedgerEntry
	var riderWalletID uuid.UUID
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		group, err := tx.EntriesByGroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		hold, resolution := openHold(group)
		if hold == nil {
			return fmt.Errorf("group %s: %w", groupID, models.ErrHoldNotFound)
		}
		if resolution != nil {
			if resolution.Type == domain.EntryTypeCaptureFare {
				legs = captureLegs(group)
				return nil
			}
			return fmt.Errorf("group %s released at %s: %w",
				groupID, resolution.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), models.ErrHoldAlreadyResolved)
		}
		if riderTotal.GreaterThan(hold.Amount) {
			return fmt.Errorf("capture %s exceeds hold %s for group %s", riderTotal, hold.Amount, groupID)
		}

		riderWalletID = *hold.WalletID
		riderAvail, riderPending, err := balancesInTx(ctx, tx, riderWalletID)
		if err != nil {
			return err
		}

		rider := models.NewUserEntry(riderWalletID, groupID, domain.EntryTypeCaptureFare, domain.DirectionOut, riderTotal)
		rider.Status = domain.StatusSuccess
		rider.Note = note
		// Closing the hold returns hold.Amount to available; the capture
		// takes riderTotal of it back out.
		snapshot(rider, riderAvail, riderPending,
			riderAvail.Add(hold.Amount).Sub(riderTotal), riderPending.Sub(hold.Amount))
		if err := tx.CreateEntry(ctx, rider); err != nil {
			return err
		}
		legs = append(legs, *rider)

		if driverAmount.IsPositive() {
			driverAvail, driverPending, err := balancesInTx(ctx, tx, driverWalletID)
			if err != nil {
				return err
			}
			driver := models.NewUserEntry(driverWalletID, groupID, domain.EntryTypeCaptureFare, domain.DirectionIn, driverAmount)
			driver.Status = domain.StatusSuccess
			driver.Note = note
			snapshot(driver, driverAvail, driverPending, driverAvail.Add(driverAmount), driverPending)
			if err := tx.CreateEntry(ctx, driver); err != nil {
				return err
			}
			legs = append(legs, *driver)
		}

		if commissionAmount.IsPositive() {
			commission := models.NewSystemEntry(domain.SystemWalletCommission, groupID, domain.EntryTypeCaptureFare, domain.DirectionIn, commissionAmount)
			commission.Status = domain.StatusSuccess
			commission.Note = note
			if err := tx.CreateEntry(ctx, commission); err != nil {
				return err
			}
			legs = append(legs, *commission)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, riderWalletID, driverWalletID)
	zap.L().Info("hold captured",
		zap.String("group_id", groupID.String()),
		zap.String("driver_amount", driverAmount.String()),
		zap.String("commission", commissionAmount.String()),
	)
	return legs, nil
}

// ReleaseHold closes the group's hold without moving money. Pending drops to
// zero for the group; available is restored. Replays return the existing
// release entry.
func (s *WalletService) ReleaseHold(ctx context.Context, groupID uuid.UUID, note string) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	var walletID uuid.UUID
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		group, err := tx.EntriesByGroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		hold, resolution := openHold(group)
		if hold == nil {
			return fmt.Errorf("group %s: %w", groupID, models.ErrHoldNotFound)
		}
		if resolution != nil {
			if resolution.Type == domain.EntryTypeReleaseHold {
				entry = resolution
				return nil
			}
			return fmt.Errorf("group %s already captured: %w", groupID, models.ErrHoldAlreadyResolved)
		}

		walletID = *hold.WalletID
		avail, pending, err := balancesInTx(ctx, tx, walletID)
		if err != nil {
			return err
		}
		entry = models.NewUserEntry(walletID, groupID, domain.EntryTypeReleaseHold, domain.DirectionIn, hold.Amount)
		entry.Status = domain.StatusSuccess
		entry.Note = note
		snapshot(entry, avail, pending, avail.Add(hold.Amount), pending.Sub(hold.Amount))
		return tx.CreateEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, walletID)
	return entry, nil
}

// GetHold returns the group's HOLD leg, resolved or not.
func (s *WalletService) GetHold(ctx context.Context, groupID uuid.UUID) (*models.LedgerEntry, error) {
	group, err := s.store.Reader().EntriesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	hold, _ := openHold(group)
	if hold == nil {
		return nil, fmt.Errorf("group %s: %w", groupID, models.ErrHoldNotFound)
	}
	return hold, nil
}

// Refund credits amount back to the wallet as a compensating pair: user IN
// plus system MASTER OUT under the given group. The original entries are
// never modified. Returns the user leg. Replaying a refund for a group that
// already has one is a no-op returning the existing leg.
func (s *WalletService) Refund(ctx context.Context, groupID uuid.UUID, walletID uuid.UUID, amount decimal.Decimal, reason string) (*models.LedgerEntry, error) {
	if err := domain.ValidAmount(amount); err != nil {
		return nil, err
	}
	var entry *models.LedgerEntry
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		group, err := tx.EntriesByGroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		for i := range group {
			if group[i].Type == domain.EntryTypeRefund && group[i].WalletID != nil && *group[i].WalletID == walletID {
				entry = &group[i]
				return nil
			}
		}
		e, err := writeRefundPair(ctx, tx, groupID, walletID, amount, reason)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, walletID)
	return entry, nil
}

// writeRefundPair appends the user IN + MASTER OUT refund legs inside an open
// unit of work. Shared with the payout failure path.
func writeRefundPair(ctx context.Context, tx repository.Tx, groupID, walletID uuid.UUID, amount decimal.Decimal, reason string) (*models.LedgerEntry, error) {
	avail, pending, err := balancesInTx(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}

	user := models.NewUserEntry(walletID, groupID, domain.EntryTypeRefund, domain.DirectionIn, amount)
	user.Status = domain.StatusSuccess
	user.Note = reason
	snapshot(user, avail, pending, avail.Add(amount), pending)
	if err := tx.CreateEntry(ctx, user); err != nil {
		return nil, err
	}

	master := models.NewSystemEntry(domain.SystemWalletMaster, groupID, domain.EntryTypeRefund, domain.DirectionOut, amount)
	master.Status = domain.StatusSuccess
	master.Note = reason
	if err := tx.CreateEntry(ctx, master); err != nil {
		return nil, err
	}
	return user, nil
}

// Statement returns the wallet's entries in write order.
func (s *WalletService) Statement(ctx context.Context, walletID uuid.UUID) ([]models.LedgerEntry, error) {
	if _, err := s.store.Reader().GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	return s.store.Reader().EntriesByWallet(ctx, walletID)
}

// CreateWallet registers a wallet at account creation.
func (s *WalletService) CreateWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w := &models.Wallet{ID: uuid.New(), UserID: userID, IsActive: true}
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		return tx.CreateWallet(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// DeactivateWallet flags the wallet inactive on suspension. Entries and
// history remain; only new holds and top-ups are refused.
func (s *WalletService) DeactivateWallet(ctx context.Context, walletID uuid.UUID) error {
	return s.store.RunInTx(ctx, func(tx repository.Tx) error {
		return tx.SetWalletActive(ctx, walletID, false)
	})
}

func snapshot(e *models.LedgerEntry, beforeAvail, beforePending, afterAvail, afterPending decimal.Decimal) {
	e.BeforeAvail = beforeAvail
	e.BeforePending = beforePending
	e.AfterAvail = afterAvail
	e.AfterPending = afterPending
}

func captureLegs(group []models.LedgerEntry) []models.LedgerEntry {
	var legs []models.LedgerEntry
	for i := range group {
		if group[i].Type == domain.EntryTypeCaptureFare {
			legs = append(legs, group[i])
		}
	}
	return legs
}
