package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/gateway"
	"github.com/saferide/ridepay/internal/models"
	"github.com/saferide/ridepay/internal/observability"
)

// WebhookService receives the gateway's push notifications. The raw body is
// HMAC-verified before it is parsed; a verified delivery is applied at most
// once, keyed by the hash of its exact bytes.
type WebhookService struct {
	topups  *TopupService
	payouts *PayoutService
	hmacKey []byte
	notify  Notifier
}

func NewWebhookService(topups *TopupService, payouts *PayoutService, hmacKey string, notify Notifier) *WebhookService {
	if notify == nil {
		notify = NoopNotifier{}
	}
	return &WebhookService{
		topups:  topups,
		payouts: payouts,
		hmacKey: []byte(hmacKey),
		notify:  notify,
	}
}

// TopupWebhookPayload is the gateway's answer to a payment intent.
type TopupWebhookPayload struct {
	OrderCode string          `json:"orderCode"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason"`
	WalletID  string          `json:"walletId"`
}

// PayoutWebhookPayload is the gateway's answer to a payout order.
type PayoutWebhookPayload struct {
	ReferenceID   string          `json:"referenceId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason"`
	TransactionID string          `json:"transactionId"`
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// deliveryMarker derives the idempotency marker for one delivery from the
// exact bytes the gateway sent. A byte-identical redelivery maps to the same
// marker; a changed payload does not.
func deliveryMarker(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "WHK:" + hex.EncodeToString(sum[:8])
}

// HandleTopup processes one top-up notification. Unsigned or tampered bodies
// are rejected before parsing; duplicates acknowledge without re-applying.
func (s *WebhookService) HandleTopup(ctx context.Context, payload []byte, signature string) (*WebhookResponse, error) {
	if !gateway.VerifyPayload(s.hmacKey, payload, signature) {
		observability.IncrementWebhookEvent("topup", "invalid_signature")
		return nil, models.ErrInvalidSignature
	}

	var event TopupWebhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	event.OrderCode = strings.TrimSpace(event.OrderCode)
	if event.OrderCode == "" {
		return nil, errors.New("orderCode is required")
	}

	err := s.topups.Resolve(ctx, event.OrderCode, event.Amount, event.Status, deliveryMarker(payload), event.Reason)
	switch {
	case errors.Is(err, models.ErrDuplicateDelivery):
		observability.IncrementWebhookEvent("topup", "duplicate")
		return &WebhookResponse{Reference: event.OrderCode, Status: event.Status, Message: "already processed"}, nil
	case err != nil:
		return nil, err
	}

	observability.IncrementWebhookEvent("topup", "processed")
	s.notifyTopup(ctx, event)
	return &WebhookResponse{Reference: event.OrderCode, Status: event.Status, Message: "processed"}, nil
}

// HandlePayout processes one payout notification.
func (s *WebhookService) HandlePayout(ctx context.Context, payload []byte, signature string) (*WebhookResponse, error) {
	if !gateway.VerifyPayload(s.hmacKey, payload, signature) {
		observability.IncrementWebhookEvent("payout", "invalid_signature")
		return nil, models.ErrInvalidSignature
	}

	var event PayoutWebhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	event.ReferenceID = strings.TrimSpace(event.ReferenceID)
	if event.ReferenceID == "" {
		return nil, errors.New("referenceId is required")
	}

	err := s.payouts.Resolve(ctx, event.ReferenceID, event.Amount, event.Status, deliveryMarker(payload), event.Reason)
	switch {
	case errors.Is(err, models.ErrDuplicateDelivery):
		observability.IncrementWebhookEvent("payout", "duplicate")
		return &WebhookResponse{Reference: event.ReferenceID, Status: event.Status, Message: "already processed"}, nil
	case err != nil:
		return nil, err
	}

	observability.IncrementWebhookEvent("payout", "processed")
	s.notify.PayoutResolved(ctx, event.ReferenceID, event.Status, event.Reason)
	return &WebhookResponse{Reference: event.ReferenceID, Status: event.Status, Message: "processed"}, nil
}

func (s *WebhookService) notifyTopup(ctx context.Context, event TopupWebhookPayload) {
	walletID, err := uuid.Parse(event.WalletID)
	if err != nil {
		walletID = uuid.Nil
	}
	s.notify.TopupResolved(ctx, walletID, event.OrderCode, event.Status)
	if walletID == uuid.Nil {
		zap.L().Debug("topup notification without wallet id", zap.String("order_code", event.OrderCode))
	}
}
