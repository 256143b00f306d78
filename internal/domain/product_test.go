package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewSizeTable(t *testing.T) {
	t.Run("valid table keeps order", func(t *testing.T) {
		table, err := NewSizeTable(
			[]string{"1kg", "5kg"},
			map[string]decimal.Decimal{"1kg": price("4.50"), "5kg": price("20")},
			map[string]int{"5kg": 3},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := table.Labels(); len(got) != 2 || got[0] != "1kg" || got[1] != "5kg" {
			t.Errorf("Labels() = %v", got)
		}
		if opt, _ := table.Find("1kg"); opt.Stock != nil {
			t.Error("1kg should be untracked")
		}
		if table.Stock()["5kg"] != 3 {
			t.Errorf("Stock() = %v", table.Stock())
		}
	})

	tests := []struct {
		name   string
		sizes  []string
		prices map[string]decimal.Decimal
		stock  map[string]int
		field  string
	}{
		{"no sizes", nil, nil, nil, "sizes"},
		{"blank label", []string{" "}, nil, nil, "sizes"},
		{"duplicate", []string{"1kg", "1kg"}, map[string]decimal.Decimal{"1kg": price("1")}, nil, "sizes"},
		{"missing price", []string{"1kg"}, map[string]decimal.Decimal{}, nil, "price"},
		{"zero price", []string{"1kg"}, map[string]decimal.Decimal{"1kg": decimal.Zero}, nil, "price"},
		{"extra price", []string{"1kg"}, map[string]decimal.Decimal{"1kg": price("1"), "2kg": price("2")}, nil, "price"},
		{"negative stock", []string{"1kg"}, map[string]decimal.Decimal{"1kg": price("1")}, map[string]int{"1kg": -1}, "stock"},
		{"extra stock", []string{"1kg"}, map[string]decimal.Decimal{"1kg": price("1")}, map[string]int{"2kg": 1}, "stock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSizeTable(tt.sizes, tt.prices, tt.stock)
			fields := GetValidationFields(err)
			if _, ok := fields[tt.field]; !ok {
				t.Errorf("expected validation error on %q, got %v", tt.field, err)
			}
		})
	}
}

func testProduct(t *testing.T, stock map[string]int) *Product {
	t.Helper()
	table, err := NewSizeTable(
		[]string{"1kg", "5kg"},
		map[string]decimal.Decimal{"1kg": price("5"), "5kg": price("22.50")},
		stock,
	)
	if err != nil {
		t.Fatal(err)
	}
	return &Product{ID: "p1", Title: "Organic Compost", Sizes: table, InStock: true}
}

func TestProduct_CheckAvailable(t *testing.T) {
	p := testProduct(t, map[string]int{"5kg": 2})

	if err := p.CheckAvailable("cart.add", "1kg", 100); err != nil {
		t.Errorf("untracked size should accept any quantity: %v", err)
	}
	if err := p.CheckAvailable("cart.add", "5kg", 2); err != nil {
		t.Errorf("exact stock should be accepted: %v", err)
	}
	if err := p.CheckAvailable("cart.add", "5kg", 3); !IsReason(err, ReasonInsufficientStock) {
		t.Errorf("expected insufficient stock, got %v", err)
	}
	if err := p.CheckAvailable("cart.add", "10kg", 1); !IsReason(err, ReasonInvalidSize) {
		t.Errorf("expected invalid size, got %v", err)
	}

	p.InStock = false
	if err := p.CheckAvailable("cart.add", "1kg", 1); !IsReason(err, ReasonOutOfStock) {
		t.Errorf("out of stock should be checked first, got %v", err)
	}
}

func TestProduct_DeriveInStock(t *testing.T) {
	t.Run("no stock figures keeps flag", func(t *testing.T) {
		p := testProduct(t, nil)
		p.InStock = false
		if p.DeriveInStock() {
			t.Error("flag should be unchanged")
		}
	})

	t.Run("all zero", func(t *testing.T) {
		p := testProduct(t, map[string]int{"1kg": 0, "5kg": 0})
		if p.DeriveInStock() {
			t.Error("all-zero stock should be out of stock")
		}
	})

	t.Run("some positive", func(t *testing.T) {
		p := testProduct(t, map[string]int{"1kg": 0, "5kg": 1})
		if !p.DeriveInStock() {
			t.Error("positive stock should be in stock")
		}
	})
}

func TestProduct_PriceFor(t *testing.T) {
	p := testProduct(t, nil)
	got, ok := p.PriceFor("5kg")
	if !ok || !got.Equal(price("22.50")) {
		t.Errorf("PriceFor(5kg) = %s, %v", got, ok)
	}
	if _, ok := p.PriceFor("2kg"); ok {
		t.Error("unlisted size should have no price")
	}
}
