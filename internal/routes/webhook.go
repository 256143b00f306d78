package routes

import (
	"github.com/dukerupert/agrimart/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Webhook routes do NOT require a bearer token. Each webhook handler is
// responsible for verifying the request signature.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.StripeHandler)
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.Health)
	if deps.Metrics != nil {
		r.Handle("GET", "/metrics", deps.Metrics)
	}
}
