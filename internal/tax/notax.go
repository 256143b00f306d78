package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// NoTaxCalculator returns zero tax for all calculations.
type NoTaxCalculator struct{}

// NewNoTaxCalculator creates a new no-tax calculator.
func NewNoTaxCalculator() *NoTaxCalculator {
	return &NoTaxCalculator{}
}

// CalculateTax always returns zero tax.
func (c *NoTaxCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	return &TaxResult{Total: decimal.Zero}, nil
}
