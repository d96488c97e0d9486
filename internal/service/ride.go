package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/models"
)

// Ride fund states derived from the booking's ledger group.
const (
	RideFundsNone     = "NONE"
	RideFundsHeld     = "HELD"
	RideFundsCaptured = "CAPTURED"
	RideFundsReleased = "RELEASED"
)

// PricingService splits a finished ride's fare between the driver and the
// marketplace commission.
type PricingService interface {
	Split(ctx context.Context, fare models.FareBreakdown) (models.FareSplit, error)
}

// BookingStore is the slice of the booking system the coordinator needs for
// compensation: undoing a booking whose fare could not be reserved.
type BookingStore interface {
	DeleteBooking(ctx context.Context, bookingID uuid.UUID) error
}

// NoBookings is the BookingStore for deployments where the booking system
// sits behind its own API and handles its own rollback. Deletion requests
// are logged and dropped.
type NoBookings struct{}

func (NoBookings) DeleteBooking(_ context.Context, bookingID uuid.UUID) error {
	zap.L().Warn("no booking store attached, rollback skipped",
		zap.String("booking_id", bookingID.String()))
	return nil
}

// RideConfig sets the cancellation policy.
type RideConfig struct {
	// GracePeriod is how long after reservation a rider may cancel free of
	// charge.
	GracePeriod time.Duration
	// CancelFeeRate is the fraction of the held fare charged for a late
	// cancellation.
	CancelFeeRate decimal.Decimal
}

// RideFundCoordinator drives the fare lifecycle of a booking: reserve on
// booking, capture on completion, release or fee on cancellation. The
// booking ID is the ledger group for every movement of the ride, which is
// what makes each step replay-safe.
type RideFundCoordinator struct {
	wallets  *WalletService
	pricing  PricingService
	bookings BookingStore
	cfg      RideConfig
}

func NewRideFundCoordinator(wallets *WalletService, pricing PricingService, bookings BookingStore, cfg RideConfig) *RideFundCoordinator {
	return &RideFundCoordinator{wallets: wallets, pricing: pricing, bookings: bookings, cfg: cfg}
}

// ReserveFare holds the fare estimate on the rider's wallet when the booking
// is accepted. If the rider cannot cover it, the booking is deleted and
// ErrInsufficientFunds surfaces to the caller.
func (c *RideFundCoordinator) ReserveFare(ctx context.Context, bookingID, riderWalletID uuid.UUID, estimate decimal.Decimal) (*models.LedgerEntry, error) {
	hold, err := c.wallets.Hold(ctx, riderWalletID, estimate, bookingID, "fare reservation for booking "+bookingID.String())
	if errors.Is(err, models.ErrInsufficientFunds) {
		if delErr := c.bookings.DeleteBooking(ctx, bookingID); delErr != nil {
			zap.L().Error("booking rollback failed after declined reservation",
				zap.String("booking_id", bookingID.String()), zap.Error(delErr))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// SettleFare captures the reserved fare when the ride completes. Pricing
// decides the driver/commission split of the final fare; any held remainder
// above it returns to the rider automatically.
func (c *RideFundCoordinator) SettleFare(ctx context.Context, bookingID, driverWalletID uuid.UUID, fare models.FareBreakdown) ([]models.LedgerEntry, error) {
	split, err := c.pricing.Split(ctx, fare)
	if err != nil {
		return nil, fmt.Errorf("price booking %s: %w", bookingID, err)
	}
	if !split.DriverPayout.Add(split.Commission).Equal(split.RiderPay) {
		return nil, fmt.Errorf("booking %s: split %s + %s does not reach rider pay %s",
			bookingID, split.DriverPayout, split.Commission, split.RiderPay)
	}
	return c.wallets.CaptureHold(ctx, bookingID, driverWalletID, split.DriverPayout, split.Commission,
		"fare settlement for booking "+bookingID.String())
}

// CancelRide resolves the booking's hold on cancellation. Inside the grace
// period the full reservation returns to the rider; after it, a cancellation
// fee is captured for the marketplace and the remainder returns.
func (c *RideFundCoordinator) CancelRide(ctx context.Context, bookingID uuid.UUID) (*models.LedgerEntry, []models.LedgerEntry, error) {
	hold, err := c.wallets.GetHold(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	fee := hold.Amount.Mul(c.cfg.CancelFeeRate).Round(0)
	late := time.Since(hold.CreatedAt) > c.cfg.GracePeriod
	if !late || !fee.IsPositive() {
		release, err := c.wallets.ReleaseHold(ctx, bookingID, "booking "+bookingID.String()+" cancelled in grace period")
		if err != nil {
			return nil, nil, err
		}
		return release, nil, nil
	}

	legs, err := c.wallets.CaptureHold(ctx, bookingID, uuid.Nil, decimal.Zero, fee,
		"late cancellation fee for booking "+bookingID.String())
	if err != nil {
		return nil, nil, err
	}
	zap.L().Info("late cancellation fee captured",
		zap.String("booking_id", bookingID.String()),
		zap.String("fee", fee.String()),
	)
	return nil, legs, nil
}

// State reports where the booking's funds stand.
func (c *RideFundCoordinator) State(ctx context.Context, bookingID uuid.UUID) (string, error) {
	hold, err := c.wallets.GetHold(ctx, bookingID)
	if errors.Is(err, models.ErrHoldNotFound) {
		return RideFundsNone, nil
	}
	if err != nil {
		return "", err
	}

	group, err := c.wallets.store.Reader().EntriesByGroup(ctx, hold.GroupID)
	if err != nil {
		return "", err
	}
	if _, resolution := openHold(group); resolution != nil {
		switch resolution.Type {
		case domain.EntryTypeReleaseHold:
			return RideFundsReleased, nil
		default:
			return RideFundsCaptured, nil
		}
	}
	return RideFundsHeld, nil
}
