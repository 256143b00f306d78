package billing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// minimumAmountCents is Stripe's smallest chargeable USD amount.
const minimumAmountCents = 50

// StripeConfig contains configuration for Stripe provider.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	WebhookSecret string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return ErrInvalidAPIKey
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_")
}

// StripeProvider implements Provider with the Stripe API.
type StripeProvider struct {
	client *stripe.Client
	config StripeConfig
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &StripeProvider{
		client: stripe.NewClient(config.APIKey),
		config: config,
	}, nil
}

// CreatePaymentIntent creates a payment intent with automatic payment methods.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	if params.AmountCents < minimumAmountCents {
		return nil, ErrAmountTooSmall
	}

	p := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(strings.ToLower(params.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.Description != "" {
		p.Description = stripe.String(params.Description)
	}
	if params.CustomerEmail != "" {
		p.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := s.client.V1PaymentIntents.Create(ctx, p)
	if err != nil {
		return nil, convertStripeError(err)
	}
	return fromStripePaymentIntent(pi), nil
}

// GetPaymentIntent retrieves a payment intent by ID.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error) {
	if params.PaymentIntentID == "" {
		return nil, ErrPaymentIntentNotFound
	}

	pi, err := s.client.V1PaymentIntents.Retrieve(ctx, params.PaymentIntentID, nil)
	if err != nil {
		return nil, convertStripeError(err)
	}
	return fromStripePaymentIntent(pi), nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against the payload.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if secret == "" {
		secret = s.config.WebhookSecret
	}
	if _, err := webhook.ConstructEvent(payload, signature, secret); err != nil {
		return errors.Join(ErrInvalidWebhookSignature, err)
	}
	return nil
}

func fromStripePaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		RawStatus:    string(pi.Status),
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0),
	}
	if pi.LastPaymentError != nil {
		out.LastErrorCode = string(pi.LastPaymentError.Code)
	}
	return out
}

// convertStripeError maps SDK errors onto billing errors.
func convertStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return ErrPaymentIntentNotFound
	}
	return &StripeError{
		Message:       stripeErr.Msg,
		Code:          string(stripeErr.Code),
		DeclineCode:   string(stripeErr.DeclineCode),
		HTTPStatus:    stripeErr.HTTPStatusCode,
		RequestID:     stripeErr.RequestID,
		OriginalError: err,
	}
}
