package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/agrimart/internal/billing"
	"github.com/dukerupert/agrimart/internal/domain"
)

// PaymentService creates and inspects card payment intents. Intents are
// visible only to the user recorded in their metadata.
type PaymentService interface {
	// CreateIntent prices the caller's cart for addressID and opens a payment
	// intent for the total.
	CreateIntent(ctx context.Context, user *domain.User, addressID string) (*PaymentIntentView, error)

	// Confirm reports whether the intent has succeeded.
	Confirm(ctx context.Context, user *domain.User, paymentIntentID string) (*PaymentIntentView, error)

	Status(ctx context.Context, user *domain.User, paymentIntentID string) (*PaymentIntentView, error)
}

// PaymentIntentView is the caller-facing part of a payment intent.
type PaymentIntentView struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret,omitempty"`
	Status          string `json:"status"`
	AmountCents     int64  `json:"amount"`
	Currency        string `json:"currency"`
	Succeeded       bool   `json:"succeeded"`
}

type paymentService struct {
	checkout CheckoutService
	billing  billing.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPaymentService creates a new PaymentService instance.
func NewPaymentService(checkout CheckoutService, provider billing.Provider, timeout time.Duration, logger *slog.Logger) PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &paymentService{
		checkout: checkout,
		billing:  provider,
		timeout:  timeout,
		logger:   logger.With("service", "payment"),
	}
}

func (s *paymentService) CreateIntent(ctx context.Context, user *domain.User, addressID string) (*PaymentIntentView, error) {
	const op = "payment.create_intent"

	q, err := s.checkout.Quote(ctx, user, addressID)
	if err != nil {
		return nil, err
	}

	tctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	pi, err := s.billing.CreatePaymentIntent(tctx, billing.CreatePaymentIntentParams{
		AmountCents:   q.AmountCents,
		Currency:      q.Currency,
		CustomerEmail: user.Email,
		Description:   fmt.Sprintf("Order for %s", user.FullName()),
		Metadata: map[string]string{
			billing.MetadataUserID:    user.ID,
			billing.MetadataAddressID: addressID,
		},
		// Same cart, address and total reuse the same intent.
		IdempotencyKey: fmt.Sprintf("pi_%s_%s_%d_%d", user.ID, addressID, q.cartVersion, q.AmountCents),
	})
	if err != nil {
		return nil, billingError(err, op)
	}

	s.logger.Info("payment intent created",
		"user_id", user.ID,
		"payment_intent_id", pi.ID,
		"amount_cents", pi.AmountCents,
	)
	return viewIntent(pi, true), nil
}

func (s *paymentService) Confirm(ctx context.Context, user *domain.User, paymentIntentID string) (*PaymentIntentView, error) {
	pi, err := s.load(ctx, "payment.confirm", user, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if pi.Status() != billing.StatusSucceeded {
		return nil, domain.PaymentNotCompleted("payment.confirm", "Payment not completed")
	}
	return viewIntent(pi, false), nil
}

func (s *paymentService) Status(ctx context.Context, user *domain.User, paymentIntentID string) (*PaymentIntentView, error) {
	pi, err := s.load(ctx, "payment.status", user, paymentIntentID)
	if err != nil {
		return nil, err
	}
	return viewIntent(pi, false), nil
}

func (s *paymentService) load(ctx context.Context, op string, user *domain.User, id string) (*billing.PaymentIntent, error) {
	if id == "" {
		return nil, domain.NewValidationError(op, "paymentIntentId", "Payment intent is required")
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	pi, err := s.billing.GetPaymentIntent(ctx, billing.GetPaymentIntentParams{PaymentIntentID: id})
	if err != nil {
		err = billingError(err, op)
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if pi.UserID() != user.ID {
		return nil, ErrPaymentForbidden
	}
	return pi, nil
}

func viewIntent(pi *billing.PaymentIntent, withSecret bool) *PaymentIntentView {
	v := &PaymentIntentView{
		PaymentIntentID: pi.ID,
		Status:          string(pi.Status()),
		AmountCents:     pi.AmountCents,
		Currency:        pi.Currency,
		Succeeded:       pi.Status() == billing.StatusSucceeded,
	}
	if withSecret {
		v.ClientSecret = pi.ClientSecret
	}
	return v
}
