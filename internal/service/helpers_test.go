package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/billing"
	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/memory"
	"github.com/dukerupert/agrimart/internal/shipping"
	"github.com/dukerupert/agrimart/internal/tax"
)

// ============================================================================
// Fixtures
// ============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedProduct stores a product with one price per size. stock may be nil for
// untracked sizes.
func seedProduct(t *testing.T, store *memory.Store, title string, prices map[string]string, stock map[string]int) *domain.Product {
	t.Helper()

	sizes := make([]string, 0, len(prices))
	priceTable := make(map[string]decimal.Decimal, len(prices))
	for size, price := range prices {
		sizes = append(sizes, size)
		priceTable[size] = dec(price)
	}
	table, err := domain.NewSizeTable(sizes, priceTable, stock)
	require.NoError(t, err)

	p := &domain.Product{Title: title, Sizes: table, Category: "tools", Type: "machinery", InStock: true}
	require.NoError(t, store.CreateProduct(context.Background(), p))
	return p
}

func seedUser(t *testing.T, store *memory.Store, subject string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{ExternalID: subject, Email: subject + "@example.com", FirstName: "Asha", LastName: "Patel", Role: role}
	require.NoError(t, store.UpsertUser(context.Background(), u))
	return u
}

func seedAddress(t *testing.T, store *memory.Store, userID string, isDefault bool) *domain.Address {
	t.Helper()
	a := &domain.Address{
		UserID:    userID,
		FirstName: "Asha",
		LastName:  "Patel",
		Email:     "asha@example.com",
		Phone:     "5551234567",
		Street:    "12 Mill Road",
		City:      "Nashik",
		State:     "MH",
		ZipCode:   "422001",
		Country:   "IN",
		IsDefault: isDefault,
	}
	require.NoError(t, store.SaveAddress(context.Background(), a))
	return a
}

func addToCart(t *testing.T, store *memory.Store, userID, productID, size string, qty int) {
	t.Helper()
	require.NoError(t, store.CartFor(userID).AddLine(context.Background(), productID, size, qty))
}

// checkoutFixture wires a checkout service over a memory store with a flat
// 10.00 shipping fee and 2% tax.
type checkoutFixture struct {
	store    *memory.Store
	billing  *billing.MockProvider
	checkout CheckoutService
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	store := memory.New()
	provider := billing.NewMockProvider()
	calc, err := tax.NewPercentageCalculator(dec("0.02"))
	require.NoError(t, err)

	notifier := NewNotifier(nil, store, time.Second, nil)
	svc := NewCheckoutService(store, store, store, store, provider,
		shipping.NewStandardProvider(dec("10")), calc, notifier,
		CheckoutConfig{Currency: "usd", StockRetryMax: 3, RetryBase: time.Millisecond, Timeout: time.Second},
		nil)
	return &checkoutFixture{store: store, billing: provider, checkout: svc}
}

// ============================================================================
// Failing stores
// ============================================================================

// downCarts is a cart repository whose server is unreachable.
type downCarts struct{}

func (downCarts) CartFor(string) domain.CartStore { return downCart{} }

type downCart struct{}

func (downCart) unavailable() error {
	return domain.Unavailable(context.DeadlineExceeded, "cart.store", "cart store did not respond")
}
func (c downCart) Cart(context.Context) (*domain.Cart, error)               { return nil, c.unavailable() }
func (c downCart) AddLine(context.Context, string, string, int) error        { return c.unavailable() }
func (c downCart) SetLine(context.Context, string, string, int) (bool, error) { return false, c.unavailable() }
func (c downCart) RemoveLine(context.Context, string, string) error          { return c.unavailable() }
func (c downCart) Clear(context.Context) error                               { return c.unavailable() }

// conflictingOrders reports a stock conflict on every placement.
type conflictingOrders struct {
	domain.OrderStore
	calls int
}

func (c *conflictingOrders) PlaceOrder(ctx context.Context, order *domain.Order, decrements []domain.StockDecrement, cartVersion int64) error {
	c.calls++
	return &domain.StockConflict{ProductID: decrements[0].ProductID, Size: decrements[0].Size}
}
