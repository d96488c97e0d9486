package service

import (
	"context"
	"fmt"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/gateway"
	"github.com/saferide/ridepay/internal/models"
	"github.com/saferide/ridepay/internal/repository"
)

// ledgerStatusFor maps a gateway-reported status onto the ledger's status
// vocabulary. Unknown statuses are an error, not a guess.
func ledgerStatusFor(gatewayStatus string) (string, error) {
	switch gatewayStatus {
	case gateway.StatusPaid, gateway.StatusSuccess:
		return domain.StatusSuccess, nil
	case gateway.StatusProcessing, gateway.StatusPending:
		return domain.StatusProcessing, nil
	case gateway.StatusFailed, gateway.StatusCancelled, gateway.StatusExpired:
		return domain.StatusFailed, nil
	}
	return "", fmt.Errorf("unknown gateway status %q", gatewayStatus)
}

// topupStatusFor is the top-up variant of ledgerStatusFor. The gateway
// reports PROCESSING for charges it has already collected, so for a top-up
// PAID and PROCESSING both settle the credit.
func topupStatusFor(gatewayStatus string) (string, error) {
	next, err := ledgerStatusFor(gatewayStatus)
	if err != nil {
		return "", err
	}
	if next == domain.StatusProcessing {
		return domain.StatusSuccess, nil
	}
	return next, nil
}

// transitionEntry advances one entry's status inside an open unit of work,
// enforcing monotonicity. Idempotent: the current status being the target is
// a no-op. PROCESSING arriving after a terminal state is also a no-op (late
// gateway notification), but a terminal state contradicting another terminal
// state is a reconciliation error and fails loudly.
func transitionEntry(ctx context.Context, tx repository.Tx, e *models.LedgerEntry, next string) (changed bool, err error) {
	if e.Status == next {
		return false, nil
	}
	if domain.TerminalStatus(e.Status) {
		if next == domain.StatusProcessing || next == domain.StatusPending {
			return false, nil
		}
		return false, fmt.Errorf("entry %s: refusing status transition %s -> %s", e.ID, e.Status, next)
	}
	if !domain.CanTransition(e.Status, next) {
		return false, fmt.Errorf("entry %s: invalid status transition %s -> %s", e.ID, e.Status, next)
	}
	rows, err := tx.UpdateEntryStatus(ctx, e.ID, next)
	if err != nil {
		return false, err
	}
	if rows != 1 {
		return false, fmt.Errorf("entry %s: status update affected %d rows", e.ID, rows)
	}
	e.Status = next
	return true, nil
}
