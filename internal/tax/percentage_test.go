package tax_test

import (
	"context"
	"testing"

	"github.com/dukerupert/agrimart/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Test_PercentageCalculator_DefaultRate covers the storefront default: 2% of
// the item subtotal, shipping excluded.
func Test_PercentageCalculator_DefaultRate(t *testing.T) {
	calc, err := tax.NewPercentageCalculator(d("0.02"))
	require.NoError(t, err)

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		Subtotal: d("250.00"),
		Shipping: d("10"),
	})

	require.NoError(t, err)
	assert.True(t, result.Total.Equal(d("5.00")), "250 * 0.02 = 5.00, got %s", result.Total)
	require.Len(t, result.Breakdown, 1)
	assert.Equal(t, "Default Sales Tax", result.Breakdown[0].Name)
	assert.True(t, result.Breakdown[0].Rate.Equal(d("0.02")))
}

func Test_PercentageCalculator_Rounding(t *testing.T) {
	tests := []struct {
		name     string
		rate     string
		subtotal string
		want     string
	}{
		{"zero rate", "0", "99.99", "0"},
		{"half cent rounds up", "0.02", "0.25", "0.01"},
		{"below half cent rounds down", "0.02", "0.24", "0"},
		{"fractional cents", "0.02", "33.33", "0.67"},
		{"large order", "0.02", "12345.67", "246.91"},
		{"zero subtotal", "0.08", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := tax.NewPercentageCalculator(d(tt.rate))
			require.NoError(t, err)

			result, err := calc.CalculateTax(context.Background(), tax.TaxParams{Subtotal: d(tt.subtotal)})
			require.NoError(t, err)
			assert.True(t, result.Total.Equal(d(tt.want)), "got %s, want %s", result.Total, tt.want)
			assert.LessOrEqual(t, int(-result.Total.Exponent()), 2, "tax must have at most 2 decimals")
		})
	}
}

func Test_PercentageCalculator_Errors(t *testing.T) {
	_, err := tax.NewPercentageCalculator(d("1"))
	assert.ErrorIs(t, err, tax.ErrInvalidRate)

	_, err = tax.NewPercentageCalculator(d("-0.1"))
	assert.ErrorIs(t, err, tax.ErrInvalidRate)

	calc, err := tax.NewPercentageCalculator(d("0.02"))
	require.NoError(t, err)
	_, err = calc.CalculateTax(context.Background(), tax.TaxParams{Subtotal: d("-1")})
	assert.ErrorIs(t, err, tax.ErrNegativeSubtotal)
}

func Test_NoTaxCalculator(t *testing.T) {
	var calc tax.Calculator = tax.NewNoTaxCalculator()
	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{Subtotal: d("100")})
	require.NoError(t, err)
	assert.True(t, result.Total.IsZero())
}
