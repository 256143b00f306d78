package shipping

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// FlatRateProvider returns predefined flat-rate shipping options.
type FlatRateProvider struct {
	rates []Rate
}

// NewFlatRateProvider creates a new flat-rate shipping provider. Rates are
// kept sorted by cost.
func NewFlatRateProvider(rates []Rate) *FlatRateProvider {
	sorted := append([]Rate(nil), rates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cost.LessThan(sorted[j].Cost)
	})
	return &FlatRateProvider{rates: sorted}
}

// NewStandardProvider offers a single standard delivery at fee.
func NewStandardProvider(fee decimal.Decimal) *FlatRateProvider {
	return NewFlatRateProvider([]Rate{{
		ServiceName: "Standard Delivery",
		ServiceCode: "standard",
		Cost:        fee,
		DaysMin:     3,
		DaysMax:     7,
	}})
}

// GetRates returns a copy of the configured rates.
func (p *FlatRateProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	if len(p.rates) == 0 {
		return nil, ErrNoRates
	}
	return append([]Rate(nil), p.rates...), nil
}
