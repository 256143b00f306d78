package routes

import (
	"net/http"

	"github.com/dukerupert/agrimart/internal/handler/api"
	"github.com/dukerupert/agrimart/internal/router"
)

// APIDeps contains dependencies for the storefront API routes
type APIDeps struct {
	// Public catalog plus owner-only product management
	ProductHandler *api.ProductHandler

	// Owner-managed product categories and types
	TaxonomyHandler *api.TaxonomyHandler

	// Cart works for guests (cookie) and signed-in users (server store)
	CartHandler *api.CartHandler

	// Checkout quote, order placement and order management
	OrderHandler *api.OrderHandler

	// Address book
	AddressHandler *api.AddressHandler

	// Card payments
	PaymentHandler *api.PaymentHandler

	// Profile and the owner's user list
	UserHandler *api.UserHandler

	// CheckoutLimit throttles order placement and intent creation per client.
	// Nil disables the extra limit.
	CheckoutLimit router.Middleware
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// OpsDeps contains dependencies for health and metrics routes
type OpsDeps struct {
	Health  http.HandlerFunc
	Metrics http.Handler
}
