package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/models"
)

// CommissionPricing splits fares by a flat marketplace commission rate. The
// commission rounds to whole currency units; the driver gets the remainder,
// so the split always reconstructs the fare exactly.
type CommissionPricing struct {
	Rate decimal.Decimal
}

func NewCommissionPricing(rate decimal.Decimal) *CommissionPricing {
	return &CommissionPricing{Rate: rate}
}

func (p *CommissionPricing) Split(_ context.Context, fare models.FareBreakdown) (models.FareSplit, error) {
	if err := domain.ValidAmount(fare.Subtotal); err != nil {
		return models.FareSplit{}, err
	}
	if p.Rate.IsNegative() || p.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return models.FareSplit{}, fmt.Errorf("commission rate %s out of range", p.Rate)
	}

	commission := fare.Subtotal.Mul(p.Rate).Round(0)
	return models.FareSplit{
		RiderPay:     fare.Subtotal,
		DriverPayout: fare.Subtotal.Sub(commission),
		Commission:   commission,
	}, nil
}
