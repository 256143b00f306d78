// Package webhook receives payment processor callbacks.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v83"

	"github.com/dukerupert/agrimart/internal/billing"
	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
	"github.com/dukerupert/agrimart/internal/telemetry"
)

// maxPayloadBytes matches the largest event Stripe documents sending.
const maxPayloadBytes = 65536

// PaymentStatusApplier records a processor-side payment outcome.
// service.OrderService satisfies it.
type PaymentStatusApplier interface {
	ApplyPaymentStatus(ctx context.Context, paymentIntentID string, status domain.PaymentStatus) (*domain.Order, error)
}

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider billing.Provider
	orders   PaymentStatusApplier
	secret   string
	logger   *slog.Logger
}

// NewStripeHandler creates a new Stripe webhook handler. secret is the
// endpoint's signing secret from the Stripe dashboard.
func NewStripeHandler(provider billing.Provider, orders PaymentStatusApplier, secret string, logger *slog.Logger) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		provider: provider,
		orders:   orders,
		secret:   secret,
		logger:   logger.With("handler", "stripe_webhook"),
	}
}

// HandleWebhook handles POST /webhooks/stripe.
//
// Events after verification:
//
//	payment_intent.succeeded       -> order paid
//	payment_intent.payment_failed  -> order payment failed
//	charge.refunded                -> order refunded
//
// Other event types are acknowledged and ignored. A store failure while
// applying a status returns an error so Stripe redelivers; applying the same
// status twice is a no-op.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "webhook.stripe"

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Invalid(op, "Missing signature"))
		return
	}
	if h.secret == "" {
		h.logger.Error("webhook secret is not configured")
		handler.ErrorResponse(w, r, domain.Unavailable(nil, op, "Webhooks are not configured"))
		return
	}
	if err := h.provider.VerifyWebhookSignature(payload, signature, h.secret); err != nil {
		h.logger.Warn("signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Unauthorized(op, "Invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "Invalid JSON"))
		return
	}

	logger := h.logger.With("event_id", event.ID, "event_type", string(event.Type))
	logger.Info("received stripe event")

	err = h.dispatch(r.Context(), logger, event)
	telemetry.Business.RecordWebhook("stripe", string(event.Type), err)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, handler.Envelope{"received": true})
}

func (h *StripeHandler) dispatch(ctx context.Context, logger *slog.Logger, event stripe.Event) error {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		return h.applyIntent(ctx, logger, event, domain.PaymentStatusPaid)

	case stripe.EventTypePaymentIntentPaymentFailed:
		return h.applyIntent(ctx, logger, event, domain.PaymentStatusFailed)

	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return domain.Invalid("webhook.stripe", "Invalid charge payload")
		}
		if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
			logger.Info("refunded charge has no payment intent", "charge_id", charge.ID)
			return nil
		}
		if !charge.Refunded {
			// Partial refunds leave the order paid.
			logger.Info("partial refund ignored", "charge_id", charge.ID, "amount_refunded", charge.AmountRefunded)
			return nil
		}
		return h.apply(ctx, logger, charge.PaymentIntent.ID, domain.PaymentStatusRefunded)

	default:
		logger.Debug("unhandled event type")
		return nil
	}
}

func (h *StripeHandler) applyIntent(ctx context.Context, logger *slog.Logger, event stripe.Event, status domain.PaymentStatus) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return domain.Invalid("webhook.stripe", "Invalid payment intent payload")
	}
	if status == domain.PaymentStatusFailed && intent.LastPaymentError != nil {
		logger = logger.With("decline_code", string(intent.LastPaymentError.DeclineCode))
	}
	return h.apply(ctx, logger, intent.ID, status)
}

func (h *StripeHandler) apply(ctx context.Context, logger *slog.Logger, intentID string, status domain.PaymentStatus) error {
	order, err := h.orders.ApplyPaymentStatus(ctx, intentID, status)
	if err != nil {
		logger.Error("failed to apply payment status", "payment_intent_id", intentID, "status", status, "error", err)
		return err
	}
	if order == nil {
		// Intents created without an order (abandoned checkouts) are expected.
		logger.Info("no order for payment intent", "payment_intent_id", intentID)
		return nil
	}
	logger.Info("payment status applied", "order_id", order.ID, "payment_status", order.PaymentStatus)
	return nil
}
