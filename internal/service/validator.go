package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/models"
	"github.com/saferide/ridepay/internal/observability"
	"github.com/saferide/ridepay/internal/repository"
)

// LedgerValidator verifies the double-entry invariant: across settled
// entries, total IN equals total OUT within the configured rounding
// tolerance. Reservation markers (HOLD, RELEASE_HOLD) are bookkeeping, not
// money, and are excluded from both sides.
//
// An imbalance means money was created or destroyed. The validator reports
// it; it never auto-corrects.
type LedgerValidator struct {
	store     repository.Store
	tolerance decimal.Decimal
}

func NewLedgerValidator(store repository.Store, tolerance decimal.Decimal) *LedgerValidator {
	if tolerance.LessThanOrEqual(decimal.Zero) {
		tolerance = domain.DefaultTolerance
	}
	return &LedgerValidator{store: store, tolerance: tolerance}
}

// Validate checks the whole ledger, gateway boundary included. MASTER legs
// mirror every external movement, so the full book must balance.
func (v *LedgerValidator) Validate(ctx context.Context) error {
	return v.check(ctx, "all", []string{
		domain.EntryTypeHold,
		domain.EntryTypeReleaseHold,
	})
}

// ValidateInternal checks only movements that stay inside the marketplace
// (fares, refunds, commission). Useful when chasing an imbalance: if the
// internal book balances but the full book does not, the gateway boundary is
// where the money leaked.
func (v *LedgerValidator) ValidateInternal(ctx context.Context) error {
	return v.check(ctx, "internal", []string{
		domain.EntryTypeHold,
		domain.EntryTypeReleaseHold,
		domain.EntryTypeTopup,
		domain.EntryTypePayout,
	})
}

func (v *LedgerValidator) check(ctx context.Context, scope string, excludeTypes []string) error {
	in, out, err := v.store.Reader().LedgerSums(ctx, excludeTypes)
	if err != nil {
		return fmt.Errorf("ledger sums (%s): %w", scope, err)
	}

	if !domain.WithinTolerance(in, out, v.tolerance) {
		observability.IncrementLedgerImbalance(scope)
		zap.L().Error("CRITICAL: ledger imbalance detected",
			zap.String("scope", scope),
			zap.String("total_in", in.String()),
			zap.String("total_out", out.String()),
			zap.String("diff", in.Sub(out).String()),
		)
		return fmt.Errorf("scope %s: in %s, out %s: %w", scope, in, out, models.ErrLedgerImbalance)
	}

	zap.L().Debug("ledger balanced",
		zap.String("scope", scope),
		zap.String("total", in.String()),
	)
	return nil
}
