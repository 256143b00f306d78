package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing.
// Simulates payment flows without calling Stripe API.
type MockProvider struct {
	// CreatePaymentIntentFunc allows customizing payment intent creation behavior
	CreatePaymentIntentFunc func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntentFunc allows customizing payment intent retrieval behavior
	GetPaymentIntentFunc func(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	// PaymentIntents stores created payment intents for retrieval
	PaymentIntents map[string]*PaymentIntent

	// CallLog tracks method calls for test assertions
	CallLog []string

	mu sync.Mutex
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		PaymentIntents: make(map[string]*PaymentIntent),
		CallLog:        []string{},
	}
}

func (m *MockProvider) log(call string) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, call)
	m.mu.Unlock()
}

// CreatePaymentIntent creates a mock payment intent.
func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.log(fmt.Sprintf("CreatePaymentIntent(%d, %s)", params.AmountCents, params.Currency))

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}

	id := "pi_" + uuid.New().String()
	pi := &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.New().String(),
		AmountCents:  params.AmountCents,
		Currency:     params.Currency,
		RawStatus:    "requires_payment_method",
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}

	m.mu.Lock()
	m.PaymentIntents[pi.ID] = pi
	m.mu.Unlock()
	return pi, nil
}

// GetPaymentIntent retrieves a mock payment intent.
func (m *MockProvider) GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error) {
	m.log(fmt.Sprintf("GetPaymentIntent(%s)", params.PaymentIntentID))

	if m.GetPaymentIntentFunc != nil {
		return m.GetPaymentIntentFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	pi, exists := m.PaymentIntents[params.PaymentIntentID]
	if !exists {
		return nil, ErrPaymentIntentNotFound
	}
	return pi, nil
}

// Succeed marks a stored payment intent as paid, as the browser confirmation would.
func (m *MockProvider) Succeed(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pi, ok := m.PaymentIntents[id]; ok {
		pi.RawStatus = "succeeded"
	}
}

// VerifyWebhookSignature verifies a mock webhook signature.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.log("VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}

	// Default mock behavior: always verify successfully
	return nil
}
