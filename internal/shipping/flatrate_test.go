package shipping

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatRateProvider_SortsByCost(t *testing.T) {
	p := NewFlatRateProvider([]Rate{
		{ServiceCode: "express", Cost: decimal.NewFromInt(25)},
		{ServiceCode: "standard", Cost: decimal.NewFromInt(10)},
	})

	rates, err := p.GetRates(context.Background(), RateParams{})
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "standard", rates[0].ServiceCode)

	rates[0].ServiceCode = "mutated"
	again, _ := p.GetRates(context.Background(), RateParams{})
	assert.Equal(t, "standard", again[0].ServiceCode, "callers must not mutate provider state")
}

func TestCheapest(t *testing.T) {
	rate, err := Cheapest(context.Background(), NewStandardProvider(decimal.NewFromInt(10)), RateParams{ItemCount: 1})
	require.NoError(t, err)
	assert.True(t, rate.Cost.Equal(decimal.NewFromInt(10)))

	_, err = Cheapest(context.Background(), NewFlatRateProvider(nil), RateParams{})
	assert.ErrorIs(t, err, ErrNoRates)
}
