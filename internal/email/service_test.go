package email

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/domain"
)

type recordingSender struct {
	sent []*Email
	err  error
}

func (r *recordingSender) Send(ctx context.Context, email *Email) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.sent = append(r.sent, email)
	return "msg-1", nil
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:     "6f1c2a9e-0000-4000-8000-00000000abcd",
		UserID: "u1",
		Items: []domain.OrderItem{
			{ProductID: "p1", ProductTitle: "Organic Compost", Size: "5kg", Quantity: 2, UnitPrice: decimal.RequireFromString("22.50")},
		},
		ShippingAddress: domain.ShippingAddress{
			FirstName: "Ada", LastName: "Field", Email: "ada@example.com",
			Street: "1 Barn Rd", City: "Ames", State: "IA", ZipCode: "50010", Country: "US",
		},
		Amount:        decimal.RequireFromString("45"),
		ShippingFee:   decimal.RequireFromString("10"),
		Tax:           decimal.RequireFromString("0.90"),
		TotalAmount:   decimal.RequireFromString("55.90"),
		PaymentMethod: domain.PaymentMethodCOD,
		CreatedAt:     time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

func TestService_SendOrderConfirmation(t *testing.T) {
	sender := &recordingSender{}
	svc, err := NewService(sender)
	require.NoError(t, err)

	err = svc.SendOrderConfirmation(context.Background(), NewOrderConfirmation(testOrder(), nil))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	assert.Equal(t, "Order Confirmation - 0000abcd", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Organic Compost")
	assert.Contains(t, msg.HTMLBody, "$55.90")
	assert.Contains(t, msg.TextBody, "Total: $55.90")
	assert.Contains(t, msg.TextBody, "Cash on delivery")
	assert.NotContains(t, msg.TextBody, "<td")
}

func TestService_SendShippingNotification(t *testing.T) {
	sender := &recordingSender{}
	svc, err := NewService(sender)
	require.NoError(t, err)

	order := testOrder()
	order.Status = domain.OrderStatusShipped
	order.TrackingNumber = "1Z999"

	require.NoError(t, svc.SendShippingNotification(context.Background(), NewShippingNotification(order, nil)))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].TextBody, "Tracking number: 1Z999")
}

func TestService_FallsBackToAccountEmail(t *testing.T) {
	sender := &recordingSender{}
	svc, err := NewService(sender)
	require.NoError(t, err)

	order := testOrder()
	order.ShippingAddress.Email = ""
	user := &domain.User{Email: "account@example.com"}

	require.NoError(t, svc.SendOrderConfirmation(context.Background(), NewOrderConfirmation(order, user)))
	assert.Equal(t, []string{"account@example.com"}, sender.sent[0].To)
}

func TestService_NoRecipient(t *testing.T) {
	svc, err := NewService(&recordingSender{})
	require.NoError(t, err)

	order := testOrder()
	order.ShippingAddress.Email = ""

	err = svc.SendOrderConfirmation(context.Background(), NewOrderConfirmation(order, nil))
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestGeneratePlainText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string
		excludes []string
	}{
		{
			name:     "simple paragraph",
			html:     "<p>Hello, World!</p>",
			contains: []string{"Hello, World!"},
			excludes: []string{"<p>", "</p>"},
		},
		{
			name:     "line breaks",
			html:     "Line 1<br>Line 2<br/>Line 3<br />Line 4",
			contains: []string{"Line 1\nLine 2\nLine 3\nLine 4"},
		},
		{
			name:     "table row",
			html:     "<table><tr><td>Compost</td><td>5kg</td></tr></table>",
			contains: []string{"Compost 5kg"},
			excludes: []string{"<td>", "<table>"},
		},
		{
			name:     "entities",
			html:     "Seeds &amp; soil &lt;fresh&gt; &#34;organic&#34;",
			contains: []string{`Seeds & soil <fresh> "organic"`},
		},
		{
			name:     "attributes stripped",
			html:     `<a href="https://example.com">Track order</a>`,
			contains: []string{"Track order"},
			excludes: []string{"href"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := generatePlainText(tt.html)
			for _, want := range tt.contains {
				assert.Contains(t, result, want)
			}
			for _, exclude := range tt.excludes {
				assert.NotContains(t, result, exclude)
			}
		})
	}
}

func TestLogSender_RequiresRecipient(t *testing.T) {
	_, err := NewLogSender(nil).Send(context.Background(), &Email{})
	assert.ErrorIs(t, err, ErrNoRecipients)

	id, err := NewLogSender(nil).Send(context.Background(), &Email{To: []string{"a@example.com"}})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
