package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// PercentageCalculator calculates tax using a simple percentage rate on the
// item subtotal. Shipping is not taxed.
type PercentageCalculator struct {
	rate decimal.Decimal // e.g., 0.02 for 2%
}

// NewPercentageCalculator creates a new percentage-based tax calculator.
func NewPercentageCalculator(rate decimal.Decimal) (*PercentageCalculator, error) {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, ErrInvalidRate
	}
	return &PercentageCalculator{rate: rate}, nil
}

// Rate returns the configured rate.
func (c *PercentageCalculator) Rate() decimal.Decimal {
	return c.rate
}

// CalculateTax computes subtotal x rate rounded half away from zero to cents.
func (c *PercentageCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	if params.Subtotal.IsNegative() {
		return nil, ErrNegativeSubtotal
	}

	amount := params.Subtotal.Mul(c.rate).Round(2)
	return &TaxResult{
		Total: amount,
		Breakdown: []TaxBreakdown{{
			Jurisdiction: "state",
			Name:         "Default Sales Tax",
			Rate:         c.rate,
			Amount:       amount,
		}},
	}, nil
}
