package routes

import (
	"github.com/dukerupert/agrimart/internal/middleware"
	"github.com/dukerupert/agrimart/internal/router"
)

// RegisterAPIRoutes registers the storefront JSON API.
//
// The global chain has already run Authenticate, so every handler sees the
// caller (or a guest). Route groups add RequireAuth and RequireOwner where
// the endpoint needs them. Image uploads get their own body limit; a
// MaxBytesReader can only shrink, never widen, an outer limit.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	public := r.Group(middleware.MaxBodySize())
	authed := public.Group(middleware.RequireAuth)
	owner := public.Group(middleware.RequireOwner)
	upload := r.Group(middleware.RequireOwner, middleware.MaxBodySize(middleware.UploadMaxBodySize))

	var checkoutLimit []router.Middleware
	if deps.CheckoutLimit != nil {
		checkoutLimit = append(checkoutLimit, deps.CheckoutLimit)
	}

	// Products
	p := deps.ProductHandler
	public.Get("/products", p.List)
	public.Get("/products/search", p.List)
	public.Get("/products/{id}", p.Get)
	owner.Post("/products", p.Create)
	owner.Post("/products/bulk-upload", p.BulkUpload)
	owner.Put("/products/{id}", p.Update)
	owner.Delete("/products/{id}", p.Delete)
	owner.Patch("/products/{id}/stock", p.SetStock)
	upload.Post("/products/{id}/images", p.UploadImage)

	// Categories and types
	t := deps.TaxonomyHandler
	public.Get("/category-types", t.List)
	owner.Post("/category-types", t.Create)
	owner.Put("/category-types/{id}", t.Update)
	owner.Delete("/category-types/{id}", t.Delete)

	// Cart
	c := deps.CartHandler
	public.Get("/cart", c.View)
	public.Get("/cart/count", c.Count)
	public.Post("/cart/add", c.Add)
	public.Put("/cart/update", c.Update)
	public.Delete("/cart/remove/{productId}/{size}", c.Remove)
	public.Delete("/cart/clear", c.Clear)
	authed.Post("/cart/sync", c.Sync)

	// Checkout and orders
	o := deps.OrderHandler
	authed.Get("/checkout/quote", o.Quote)
	authed.Post("/orders", o.Create, checkoutLimit...)
	authed.Get("/orders/my-orders", o.Mine)
	authed.Get("/orders/{id}", o.Get)
	owner.Get("/orders", o.List)
	owner.Get("/orders/dashboard/stats", o.Dashboard)
	owner.Patch("/orders/{id}/status", o.UpdateStatus)

	// Address book
	a := deps.AddressHandler
	authed.Get("/address", a.List)
	authed.Get("/address/{id}", a.Get)
	authed.Post("/address", a.Add)
	authed.Put("/address/{id}", a.Update)
	authed.Delete("/address/{id}", a.Delete)
	authed.Patch("/address/{id}/set-default", a.SetDefault)

	// Payments
	pay := deps.PaymentHandler
	authed.Post("/payment/create-intent", pay.CreateIntent, checkoutLimit...)
	authed.Post("/payment/confirm", pay.Confirm)
	authed.Get("/payment/status/{paymentIntentId}", pay.Status)

	// Users
	u := deps.UserHandler
	authed.Get("/users/me", u.Me)
	authed.Put("/users/update", u.Update)
	owner.Get("/users/all", u.List)
}
