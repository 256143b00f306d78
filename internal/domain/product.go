package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRODUCT DOMAIN TYPES
// =============================================================================

// SizeOption is one purchasable size of a product: its label, unit price and
// optional stock figure. A nil Stock means the size is not stock-tracked.
type SizeOption struct {
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
	Stock *int            `json:"stock,omitempty"`
}

// SizeTable is the ordered association from size label to price and stock.
// Build it with NewSizeTable so every size has exactly one price.
type SizeTable []SizeOption

// NewSizeTable validates the raw catalog maps and returns the ordered table.
// sizes fixes the display order; prices must cover exactly those sizes and
// stock may only mention listed sizes.
func NewSizeTable(sizes []string, prices map[string]decimal.Decimal, stock map[string]int) (SizeTable, error) {
	const op = "product.sizes"

	if len(sizes) == 0 {
		return nil, NewValidationError(op, "sizes", "at least one size is required")
	}

	seen := make(map[string]bool, len(sizes))
	table := make(SizeTable, 0, len(sizes))
	for _, raw := range sizes {
		label := strings.TrimSpace(raw)
		if label == "" {
			return nil, NewValidationError(op, "sizes", "size labels cannot be blank")
		}
		if seen[label] {
			return nil, NewValidationError(op, "sizes", "duplicate size "+label)
		}
		seen[label] = true

		price, ok := prices[label]
		if !ok {
			return nil, NewValidationError(op, "price", "missing price for size "+label)
		}
		if !price.IsPositive() {
			return nil, NewValidationError(op, "price", "price for size "+label+" must be positive")
		}

		opt := SizeOption{Label: label, Price: price}
		if qty, ok := stock[label]; ok {
			if qty < 0 {
				return nil, NewValidationError(op, "stock", "stock for size "+label+" cannot be negative")
			}
			q := qty
			opt.Stock = &q
		}
		table = append(table, opt)
	}

	for label := range prices {
		if !seen[label] {
			return nil, NewValidationError(op, "price", "price given for unlisted size "+label)
		}
	}
	for label := range stock {
		if !seen[label] {
			return nil, NewValidationError(op, "stock", "stock given for unlisted size "+label)
		}
	}

	return table, nil
}

// Labels returns the size labels in order.
func (t SizeTable) Labels() []string {
	labels := make([]string, len(t))
	for i, opt := range t {
		labels[i] = opt.Label
	}
	return labels
}

// Find returns the option for label.
func (t SizeTable) Find(label string) (SizeOption, bool) {
	for _, opt := range t {
		if opt.Label == label {
			return opt, true
		}
	}
	return SizeOption{}, false
}

// Prices returns the price map keyed by label.
func (t SizeTable) Prices() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(t))
	for _, opt := range t {
		m[opt.Label] = opt.Price
	}
	return m
}

// Stock returns the known stock figures keyed by label.
func (t SizeTable) Stock() map[string]int {
	m := make(map[string]int, len(t))
	for _, opt := range t {
		if opt.Stock != nil {
			m[opt.Label] = *opt.Stock
		}
	}
	return m
}

// Product is a catalog entry.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Images      []string  `json:"images"`
	Sizes       SizeTable `json:"sizes"`
	Category    string    `json:"category"`
	Type        string    `json:"type"`
	Popular     bool      `json:"popular"`
	InStock     bool      `json:"inStock"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasSize reports whether the product offers size.
func (p *Product) HasSize(size string) bool {
	_, ok := p.Sizes.Find(size)
	return ok
}

// PriceFor returns the unit price for size. ok is false for unlisted sizes.
func (p *Product) PriceFor(size string) (decimal.Decimal, bool) {
	opt, ok := p.Sizes.Find(size)
	if !ok {
		return decimal.Zero, false
	}
	return opt.Price, true
}

// StockFor returns the stock figure for size; tracked is false when the
// size has no stock figure.
func (p *Product) StockFor(size string) (qty int, tracked bool) {
	opt, ok := p.Sizes.Find(size)
	if !ok || opt.Stock == nil {
		return 0, false
	}
	return *opt.Stock, true
}

// DeriveInStock computes the availability flag from stock figures: false
// once every known stock figure is zero. Products with no stock figures
// keep their current flag.
func (p *Product) DeriveInStock() bool {
	known := 0
	for _, opt := range p.Sizes {
		if opt.Stock == nil {
			continue
		}
		known++
		if *opt.Stock > 0 {
			return true
		}
	}
	if known == 0 {
		return p.InStock
	}
	return false
}

// Image returns the first image reference, or "".
func (p *Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CheckAvailable validates a (size, quantity) request against the product
// using the checks shared by the cart and checkout.
func (p *Product) CheckAvailable(op, size string, quantity int) error {
	if !p.InStock {
		return OutOfStock(op, p.Title)
	}
	if !p.HasSize(size) {
		return InvalidSize(op, p.Title, size)
	}
	if stock, tracked := p.StockFor(size); tracked && stock < quantity {
		return InsufficientStock(op, p.Title, size, stock, quantity)
	}
	return nil
}

// =============================================================================
// CATALOG STORE
// =============================================================================

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	Category string
	Type     string
	Popular  *bool
	InStock  *bool
	Search   string
	Page     int
	Limit    int
}

// Normalize applies paging defaults.
func (f *ProductFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// Offset returns the number of rows to skip.
func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// ProductStore persists catalog records.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*Product, error)

	// GetProducts returns the products that still exist among ids, keyed by id.
	GetProducts(ctx context.Context, ids []string) (map[string]*Product, error)

	ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, int, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id string) error

	// SetStock overwrites one size's stock figure and recomputes availability.
	SetStock(ctx context.Context, id, size string, qty int) (*Product, error)

	AddImage(ctx context.Context, id, url string) (*Product, error)
}
