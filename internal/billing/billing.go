// Package billing wraps the payment processor used to authorize card payments.
package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe or a test double.
type Provider interface {
	// CreatePaymentIntent creates an authorization for a one-time charge and
	// returns the client secret the browser uses to confirm it.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	// Checkout calls this to re-verify a card payment before marking an order paid.
	GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// Metadata keys attached to every payment intent.
const (
	MetadataUserID    = "user_id"
	MetadataAddressID = "address_id"
)

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in smallest currency unit (cents for USD)
	AmountCents int64

	// Currency code (ISO 4217) - e.g., "usd", "inr"
	Currency string

	// CustomerEmail is sent as the receipt address
	CustomerEmail string

	Description string

	// Metadata always carries user_id and address_id
	Metadata map[string]string

	// IdempotencyKey prevents duplicate payment intents
	IdempotencyKey string
}

// GetPaymentIntentParams identifies a payment intent to retrieve.
type GetPaymentIntentParams struct {
	PaymentIntentID string
}

// Status is the normalized outcome of a payment intent.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

// PaymentIntent represents a payment authorization.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string

	// RawStatus is the processor's status (requires_payment_method, processing, succeeded, ...)
	RawStatus string

	// LastErrorCode is set when the latest attempt failed
	LastErrorCode string

	Metadata  map[string]string
	CreatedAt time.Time
}

// Status maps the processor status onto succeeded, failed or pending.
// A canceled intent, or one sent back to requires_payment_method after a
// failed attempt, counts as failed.
func (pi *PaymentIntent) Status() Status {
	switch pi.RawStatus {
	case "succeeded":
		return StatusSucceeded
	case "canceled":
		return StatusFailed
	case "requires_payment_method":
		if pi.LastErrorCode != "" {
			return StatusFailed
		}
		return StatusPending
	default:
		return StatusPending
	}
}

// UserID returns the user recorded in the intent's metadata.
func (pi *PaymentIntent) UserID() string {
	if pi.Metadata == nil {
		return ""
	}
	return pi.Metadata[MetadataUserID]
}
