package domain

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CART DOMAIN TYPES
// =============================================================================

// MaxLineQuantity caps the quantity held on a single cart line.
const MaxLineQuantity = 999

// QuantityTooLarge reports a line quantity above MaxLineQuantity.
func QuantityTooLarge(op string) error {
	return NewValidationError(op, "quantity", fmt.Sprintf("Quantity cannot exceed %d", MaxLineQuantity))
}

// CartLine is one (product, size, quantity) selection. Quantity is always
// between 1 and MaxLineQuantity; a line that would drop to zero is deleted
// instead.
type CartLine struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// Cart is the set of lines owned by one user, or held on a guest's device.
type Cart struct {
	UserID  string     `json:"userId,omitempty"`
	Lines   []CartLine `json:"items"`
	Version int64      `json:"-"`
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Count returns the sum of quantities across every line.
func (c *Cart) Count() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Amount prices every line from the catalog snapshot. Lines whose product is
// missing from the snapshot, or whose size has no price, contribute zero.
func (c *Cart) Amount(snapshot map[string]*Product) decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, l := range c.Lines {
		p, ok := snapshot[l.ProductID]
		if !ok || p == nil {
			continue
		}
		price, ok := p.PriceFor(l.Size)
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Find returns the index of the (productID, size) line or -1.
func (c *Cart) Find(productID, size string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID && l.Size == size {
			return i
		}
	}
	return -1
}

// Add sums quantity into an existing line or appends a new one. A sum above
// MaxLineQuantity leaves the cart unchanged.
func (c *Cart) Add(productID, size string, quantity int) error {
	i := c.Find(productID, size)
	held := 0
	if i >= 0 {
		held = c.Lines[i].Quantity
	}
	if quantity > MaxLineQuantity-held {
		return QuantityTooLarge("cart.add")
	}
	if i >= 0 {
		c.Lines[i].Quantity += quantity
		return nil
	}
	c.Lines = append(c.Lines, CartLine{ProductID: productID, Size: size, Quantity: quantity})
	return nil
}

// Set overwrites a line's quantity; zero removes the line. It reports
// whether the line existed.
func (c *Cart) Set(productID, size string, quantity int) bool {
	i := c.Find(productID, size)
	if i < 0 {
		return false
	}
	if quantity == 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return true
	}
	c.Lines[i].Quantity = quantity
	return true
}

// Remove deletes the (productID, size) line if present.
func (c *Cart) Remove(productID, size string) {
	if i := c.Find(productID, size); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

// Grouped returns product id -> size -> quantity. A product with no sizes
// left never appears.
func (c *Cart) Grouped() map[string]map[string]int {
	out := make(map[string]map[string]int)
	if c == nil {
		return out
	}
	for _, l := range c.Lines {
		sizes, ok := out[l.ProductID]
		if !ok {
			sizes = make(map[string]int)
			out[l.ProductID] = sizes
		}
		sizes[l.Size] += l.Quantity
	}
	return out
}

// ProductIDs returns the distinct product ids referenced by the cart, sorted.
func (c *Cart) ProductIDs() []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// CART STORES
// =============================================================================

// CartStore is the line-level persistence contract shared by the device-local
// guest store and the server store.
type CartStore interface {
	// Cart returns the current cart; an absent cart is returned empty.
	Cart(ctx context.Context) (*Cart, error)

	// AddLine sums quantity into the line, creating cart and line as needed.
	AddLine(ctx context.Context, productID, size string, quantity int) error

	// SetLine overwrites the line's quantity; zero deletes it. It reports
	// false without error when the line does not exist.
	SetLine(ctx context.Context, productID, size string, quantity int) (bool, error)

	// RemoveLine deletes the line; absent lines are not an error.
	RemoveLine(ctx context.Context, productID, size string) error

	// Clear empties the cart without deleting it.
	Clear(ctx context.Context) error
}

// CartRepository hands out server-side cart stores bound to a user.
type CartRepository interface {
	CartFor(userID string) CartStore
}
