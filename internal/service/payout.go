package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/gateway"
	"github.com/saferide/ridepay/internal/models"
	"github.com/saferide/ridepay/internal/repository"
)

// payoutNoteMarker tags payout legs whose gateway outcome is still owed. The
// reconciliation poller selects on it.
const payoutNoteMarker = "PAYOUT_"

// PayoutService moves wallet money out to a bank account through the
// gateway. The ledger debit is recorded PENDING before the gateway is asked;
// the gateway's asynchronous answer (webhook or poll) settles it. A failed
// payout is compensated with a refund pair, never erased.
type PayoutService struct {
	store repository.Store
	gw    gateway.Gateway
	cache *repository.BalanceCache
}

func NewPayoutService(store repository.Store, gw gateway.Gateway, cache *repository.BalanceCache) *PayoutService {
	return &PayoutService{store: store, gw: gw, cache: cache}
}

// BankDestination is where a payout lands.
type BankDestination struct {
	Bin           string `json:"bin"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

func (d BankDestination) Validate() error {
	if d.Bin == "" {
		return errors.New("destination.bin is required")
	}
	if d.AccountNumber == "" {
		return errors.New("destination.account_number is required")
	}
	return nil
}

// PayoutResponse reports the accepted payout.
type PayoutResponse struct {
	GroupID     uuid.UUID `json:"group_id"`
	ReferenceID string    `json:"reference_id"`
	Status      string    `json:"status"`
}

func payoutKey(referenceID string, amount decimal.Decimal) string {
	return fmt.Sprintf("%s%s_%s", payoutNoteMarker, referenceID, amount.String())
}

// RequestPayout debits the wallet and submits a payout order. The debit
// lands first as PENDING legs (user OUT + MASTER IN) under the wallet lock;
// the gateway is only called after the unit of work commits, so no ledger
// lock is ever held across the network.
//
// A gateway rejection settles the payout FAILED immediately, refund
// included. A gateway outage leaves it PENDING for the poller.
func (s *PayoutService) RequestPayout(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, dest BankDestination, description string) (*PayoutResponse, error) {
	if err := domain.ValidAmount(amount); err != nil {
		return nil, err
	}
	if err := dest.Validate(); err != nil {
		return nil, err
	}

	groupID := uuid.New()
	referenceID := "PO-" + strings.ReplaceAll(uuid.New().String(), "-", "")
	key := payoutKey(referenceID, amount)

	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		w, err := tx.GetWalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		if !w.IsActive {
			return fmt.Errorf("wallet %s: %w", walletID, models.ErrWalletInactive)
		}

		avail, pending, err := balancesInTx(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if avail.LessThan(amount) {
			return fmt.Errorf("wallet %s: need %s, have %s: %w",
				walletID, amount, avail, models.ErrInsufficientFunds)
		}

		user := models.NewUserEntry(walletID, groupID, domain.EntryTypePayout, domain.DirectionOut, amount)
		user.PspRef = referenceID
		user.Note = key
		snapshot(user, avail, pending, avail.Sub(amount), pending)
		if err := tx.CreateEntry(ctx, user); err != nil {
			return err
		}

		master := models.NewSystemEntry(domain.SystemWalletMaster, groupID, domain.EntryTypePayout, domain.DirectionIn, amount)
		master.PspRef = referenceID
		master.Note = key
		return tx.CreateEntry(ctx, master)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, walletID)

	result, err := s.gw.CreatePayoutOrder(ctx, gateway.PayoutOrderRequest{
		ReferenceID:     referenceID,
		Amount:          amount,
		ToBin:           dest.Bin,
		ToAccountNumber: dest.AccountNumber,
		Description:     description,
		Category:        "payout",
	}, referenceID)

	status := domain.StatusPending
	switch {
	case err == nil:
		if resolveErr := s.Resolve(ctx, referenceID, amount, result.Data.Status, "", ""); resolveErr != nil {
			zap.L().Error("payout status after submit not applied",
				zap.String("reference_id", referenceID), zap.Error(resolveErr))
		} else if next, mapErr := ledgerStatusFor(result.Data.Status); mapErr == nil {
			status = next
		}
	case errors.Is(err, gateway.ErrRejected):
		if resolveErr := s.Resolve(ctx, referenceID, amount, gateway.StatusFailed, "", err.Error()); resolveErr != nil {
			zap.L().Error("rejected payout not settled",
				zap.String("reference_id", referenceID), zap.Error(resolveErr))
		} else {
			status = domain.StatusFailed
		}
	default:
		// Outage after the debit committed. The payout stays PENDING; the
		// poller reconciles it against the gateway later.
		zap.L().Warn("payout submitted into gateway outage",
			zap.String("reference_id", referenceID), zap.Error(err))
	}

	zap.L().Info("payout requested",
		zap.String("wallet_id", walletID.String()),
		zap.String("reference_id", referenceID),
		zap.String("amount", amount.String()),
		zap.String("status", status),
	)
	return &PayoutResponse{GroupID: groupID, ReferenceID: referenceID, Status: status}, nil
}

// Resolve settles a payout from a gateway notification or poll. FAILED
// settles the legs FAILED and writes the compensating refund pair in the
// same unit of work, restoring exactly the debited amount. Statuses never
// move backwards; replays are no-ops and marked deliveries return
// ErrDuplicateDelivery.
func (s *PayoutService) Resolve(ctx context.Context, referenceID string, amount decimal.Decimal, gatewayStatus, dedupMarker, reason string) error {
	next, err := ledgerStatusFor(gatewayStatus)
	if err != nil {
		return err
	}

	var walletID uuid.UUID
	var settled bool
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		refs, err := tx.EntriesByPspRef(ctx, referenceID)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			return fmt.Errorf("payout %s: %w", referenceID, models.ErrEntryNotFound)
		}

		group, err := tx.EntriesByGroupForUpdate(ctx, refs[0].GroupID)
		if err != nil {
			return err
		}

		var user *models.LedgerEntry
		for i := range group {
			if group[i].Type == domain.EntryTypePayout && group[i].ActorKind == domain.ActorKindUser {
				user = &group[i]
			}
		}
		if user == nil || user.WalletID == nil {
			return fmt.Errorf("payout %s: no user leg: %w", referenceID, models.ErrEntryNotFound)
		}
		walletID = *user.WalletID

		if !amount.IsZero() && !amount.Equal(user.Amount) {
			return fmt.Errorf("payout %s: notified amount %s does not match debit %s: %w",
				referenceID, amount, user.Amount, models.ErrPayloadMismatch)
		}
		if dedupMarker != "" && strings.Contains(user.Note, dedupMarker) {
			return fmt.Errorf("payout %s: %w", referenceID, models.ErrDuplicateDelivery)
		}

		for i := range group {
			if group[i].Type != domain.EntryTypePayout {
				continue
			}
			changed, err := transitionEntry(ctx, tx, &group[i], next)
			if err != nil {
				return err
			}
			settled = settled || changed
		}

		if next == domain.StatusFailed && settled {
			refunded := false
			for i := range group {
				if group[i].Type == domain.EntryTypeRefund {
					refunded = true
				}
			}
			if !refunded {
				refundReason := "payout " + referenceID + " failed"
				if reason != "" {
					refundReason += ": " + reason
				}
				if _, err := writeRefundPair(ctx, tx, user.GroupID, walletID, user.Amount, refundReason); err != nil {
					return err
				}
			}
		}

		if dedupMarker != "" {
			if err := tx.AppendEntryNote(ctx, user.ID, dedupMarker); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if settled {
		s.cache.Invalidate(ctx, walletID)
		zap.L().Info("payout resolved",
			zap.String("reference_id", referenceID),
			zap.String("status", next),
		)
	}
	return nil
}

// PollPending reconciles payouts the gateway never answered for. It reads
// candidate references without any lock, asks the gateway per reference, and
// settles through Resolve. A reference the gateway does not recognize after
// the outage window is settled FAILED.
func (s *PayoutService) PollPending(ctx context.Context, minAge, maxAge time.Duration, limit int32) (int, error) {
	now := time.Now()
	refs, err := s.store.Reader().PendingGatewayRefs(ctx,
		domain.EntryTypePayout, payoutNoteMarker, now.Add(-minAge), now.Add(-maxAge), limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, ref := range refs {
		status, err := s.gw.GetPayoutStatus(ctx, ref)
		switch {
		case errors.Is(err, gateway.ErrRejected):
			// The gateway never saw this order. The debit must come back.
			err = s.Resolve(ctx, ref, decimal.Zero, gateway.StatusFailed, "", "unknown to gateway")
		case err != nil:
			zap.L().Warn("payout poll failed", zap.String("reference_id", ref), zap.Error(err))
			continue
		default:
			err = s.Resolve(ctx, ref, decimal.Zero, status.Status, "", "")
		}
		if err != nil && !errors.Is(err, models.ErrDuplicateDelivery) {
			zap.L().Error("payout reconciliation failed", zap.String("reference_id", ref), zap.Error(err))
			continue
		}
		resolved++
	}
	return resolved, nil
}
