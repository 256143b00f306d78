// Package shipping prices delivery for an order.
package shipping

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoRates is returned when a provider has no option for the shipment.
	ErrNoRates = errors.New("shipping: no rates available")
)

// Provider defines the interface for shipping rates.
type Provider interface {
	// GetRates returns available shipping options, cheapest first.
	GetRates(ctx context.Context, params RateParams) ([]Rate, error)
}

// RateParams describes the shipment being priced.
type RateParams struct {
	Destination Address
	Subtotal    decimal.Decimal
	ItemCount   int
}

// Address is the delivery destination.
type Address struct {
	City       string
	State      string
	PostalCode string
	Country    string
}

// Rate represents a shipping rate option.
type Rate struct {
	ServiceName string
	ServiceCode string
	Cost        decimal.Decimal
	DaysMin     int
	DaysMax     int
}

// Cheapest returns the first rate offered by p.
func Cheapest(ctx context.Context, p Provider, params RateParams) (Rate, error) {
	rates, err := p.GetRates(ctx, params)
	if err != nil {
		return Rate{}, err
	}
	if len(rates) == 0 {
		return Rate{}, ErrNoRates
	}
	return rates[0], nil
}
