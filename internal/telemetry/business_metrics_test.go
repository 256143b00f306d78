package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/agrimart/internal/domain"
)

func TestBusinessMetrics_NilSafe(t *testing.T) {
	var m *BusinessMetrics
	assert.NotPanics(t, func() {
		m.RecordCartAdd("guest")
		m.RecordCheckout(nil)
		m.RecordOrder(&domain.Order{})
		m.RecordJob("x", time.Now(), nil)
		m.ObserveStripe("create", time.Now())
	})
}

func TestBusinessMetrics_Record(t *testing.T) {
	m := NewBusinessMetrics("test", prometheus.NewRegistry())

	m.RecordCheckout(nil)
	m.RecordCheckout(domain.Conflict("order.create", "sold out"))
	m.RecordCheckout(errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutAttempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutAttempts.WithLabelValues(domain.ECONFLICT)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutAttempts.WithLabelValues(domain.EINTERNAL)))

	m.RecordOrder(&domain.Order{
		PaymentMethod: domain.PaymentMethodCOD,
		TotalAmount:   decimal.NewFromInt(42),
		Items:         []domain.OrderItem{{Quantity: 3}},
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreated.WithLabelValues("COD")))

	m.RecordStatusChange(domain.OrderStatusPending, domain.OrderStatusProcessing)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderStatusChanges.WithLabelValues("pending", "processing")))
}
