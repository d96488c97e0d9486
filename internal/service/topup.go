package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/gateway"
	"github.com/saferide/ridepay/internal/models"
	"github.com/saferide/ridepay/internal/repository"
)

// TopupService moves money from the outside world into a wallet. Creating a
// top-up opens a payment intent at the gateway and records a paired PENDING
// movement (MASTER OUT + user IN); the gateway's asynchronous answer settles
// it through Resolve.
type TopupService struct {
	store repository.Store
	gw    gateway.Gateway
	cache *repository.BalanceCache
}

func NewTopupService(store repository.Store, gw gateway.Gateway, cache *repository.BalanceCache) *TopupService {
	return &TopupService{store: store, gw: gw, cache: cache}
}

// TopupResponse is the checkout handle returned to the client.
type TopupResponse struct {
	GroupID     uuid.UUID `json:"group_id"`
	OrderCode   string    `json:"order_code"`
	CheckoutURL string    `json:"checkout_url"`
	QRCode      string    `json:"qr_code"`
	Status      string    `json:"status"`
}

// topupKey ties a gateway order to the exact amount the ledger recorded for
// it. It is written into both legs' notes as the replay key for the order.
func topupKey(orderCode string, amount decimal.Decimal) string {
	return fmt.Sprintf("TOPUP_%s_%s", orderCode, amount.String())
}

// CreateTopup opens a payment intent for amount and records the pending
// ledger movement under a fresh group. The gateway call happens before any
// ledger write; if the gateway refuses, nothing is recorded.
func (s *TopupService) CreateTopup(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, description string) (*TopupResponse, error) {
	if err := domain.ValidAmount(amount); err != nil {
		return nil, err
	}

	w, err := s.store.Reader().GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, fmt.Errorf("wallet %s: %w", walletID, models.ErrWalletInactive)
	}

	intent, err := s.gw.CreatePaymentIntent(ctx, gateway.PaymentIntentRequest{
		Amount:      amount,
		PayerRef:    w.UserID.String(),
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("open payment intent: %w", err)
	}

	groupID := uuid.New()
	key := topupKey(intent.OrderCode, amount)
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		master := models.NewSystemEntry(domain.SystemWalletMaster, groupID, domain.EntryTypeTopup, domain.DirectionOut, amount)
		master.PspRef = intent.OrderCode
		master.Note = key
		if err := tx.CreateEntry(ctx, master); err != nil {
			return err
		}

		user := models.NewUserEntry(walletID, groupID, domain.EntryTypeTopup, domain.DirectionIn, amount)
		user.PspRef = intent.OrderCode
		user.Note = key
		avail, pending, err := balancesInTx(ctx, tx, walletID)
		if err != nil {
			return err
		}
		// Inflows only land once SUCCESS; the snapshot records what will be
		// true when the gateway confirms.
		snapshot(user, avail, pending, avail.Add(amount), pending)
		return tx.CreateEntry(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("topup created",
		zap.String("wallet_id", walletID.String()),
		zap.String("order_code", intent.OrderCode),
		zap.String("amount", amount.String()),
	)
	return &TopupResponse{
		GroupID:     groupID,
		OrderCode:   intent.OrderCode,
		CheckoutURL: intent.CheckoutURL,
		QRCode:      intent.QRCode,
		Status:      domain.StatusPending,
	}, nil
}

// Resolve settles a top-up from a gateway notification or poll. amount is
// cross-checked against the recorded movement when non-zero. dedupMarker, when
// set, makes redundant deliveries of the same payload return
// ErrDuplicateDelivery instead of re-applying.
func (s *TopupService) Resolve(ctx context.Context, orderCode string, amount decimal.Decimal, gatewayStatus, dedupMarker, reason string) error {
	next, err := topupStatusFor(gatewayStatus)
	if err != nil {
		return err
	}

	var walletID uuid.UUID
	var settled bool
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		refs, err := tx.EntriesByPspRef(ctx, orderCode)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			return fmt.Errorf("order %s: %w", orderCode, models.ErrEntryNotFound)
		}

		// Group lock serializes webhook vs poller resolution of the same
		// order.
		group, err := tx.EntriesByGroupForUpdate(ctx, refs[0].GroupID)
		if err != nil {
			return err
		}

		var user *models.LedgerEntry
		for i := range group {
			if group[i].Type == domain.EntryTypeTopup && group[i].ActorKind == domain.ActorKindUser {
				user = &group[i]
			}
		}
		if user == nil {
			return fmt.Errorf("order %s: no user top-up leg: %w", orderCode, models.ErrEntryNotFound)
		}
		if !amount.IsZero() && !amount.Equal(user.Amount) {
			return fmt.Errorf("order %s: notified amount %s does not match recorded %s: %w",
				orderCode, amount, user.Amount, models.ErrPayloadMismatch)
		}
		if dedupMarker != "" && strings.Contains(user.Note, dedupMarker) {
			return fmt.Errorf("order %s: %w", orderCode, models.ErrDuplicateDelivery)
		}

		for i := range group {
			if group[i].Type != domain.EntryTypeTopup {
				continue
			}
			changed, err := transitionEntry(ctx, tx, &group[i], next)
			if err != nil {
				return err
			}
			settled = settled || changed
		}

		if walletFor := user.WalletID; walletFor != nil {
			walletID = *walletFor
		}
		if dedupMarker != "" {
			if err := tx.AppendEntryNote(ctx, user.ID, dedupMarker); err != nil {
				return err
			}
		}
		if next == domain.StatusFailed && reason != "" {
			if err := tx.AppendEntryNote(ctx, user.ID, "failure: "+reason); err != nil {
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
		zap.L().Info("topup resolved",
			zap.String("order_code", orderCode),
			zap.String("status", next),
		)
	}
	return nil
}
