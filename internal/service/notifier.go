package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier fans settlement outcomes out to users. Delivery is best effort
// and never blocks or fails the ledger write that triggered it.
type Notifier interface {
	TopupResolved(ctx context.Context, walletID uuid.UUID, orderCode, status string)
	PayoutResolved(ctx context.Context, referenceID, status, reason string)
}

// NoopNotifier discards every notification.
type NoopNotifier struct{}

func (NoopNotifier) TopupResolved(context.Context, uuid.UUID, string, string) {}
func (NoopNotifier) PayoutResolved(context.Context, string, string, string)   {}

// LogNotifier writes notifications to the structured log. Stands in until a
// push channel exists.
type LogNotifier struct{}

func (LogNotifier) TopupResolved(_ context.Context, walletID uuid.UUID, orderCode, status string) {
	zap.L().Info("notify: topup resolved",
		zap.String("wallet_id", walletID.String()),
		zap.String("order_code", orderCode),
		zap.String("status", status),
	)
}

func (LogNotifier) PayoutResolved(_ context.Context, referenceID, status, reason string) {
	zap.L().Info("notify: payout resolved",
		zap.String("reference_id", referenceID),
		zap.String("status", status),
		zap.String("reason", reason),
	)
}
