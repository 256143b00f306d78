package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dukerupert/agrimart/internal/domain"
)

// BusinessMetrics holds Prometheus metrics for storefront behavior. Every
// Record method is safe on a nil receiver so callers need not check whether
// metrics were initialized.
type BusinessMetrics struct {
	// Cart
	CartLinesAdded *prometheus.CounterVec
	CartFallbacks  *prometheus.CounterVec
	CartReconciled *prometheus.CounterVec

	// Checkout
	CheckoutAttempts      *prometheus.CounterVec
	StockConflicts        prometheus.Counter
	StockRetriesExhausted prometheus.Counter
	PaymentVerifications  *prometheus.CounterVec

	// Orders
	OrdersCreated       *prometheus.CounterVec
	OrderValue          *prometheus.HistogramVec
	OrderItemCount      prometheus.Histogram
	OrderStatusChanges  *prometheus.CounterVec
	PaymentStatusUpdate *prometheus.CounterVec

	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookFailed   *prometheus.CounterVec

	// Background jobs
	JobsProcessed *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// External API performance
	StripeAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates the metrics and registers them with reg.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "agrimart"
	}
	const subsystem = "business"
	f := promauto.With(reg)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &BusinessMetrics{
		CartLinesAdded: counter("cart_lines_added_total", "Cart add operations by store", "store"),
		CartFallbacks:  counter("cart_fallbacks_total", "Cart mutations redirected to the device store after a server store failure", "operation"),
		CartReconciled: counter("cart_reconciled_total", "Guest carts reconciled at sign-in", "policy"),

		CheckoutAttempts: counter("checkout_attempts_total", "Order placement attempts by outcome", "result"),
		StockConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stock_conflicts_total",
			Help:      "Conditional stock decrements that lost a race",
		}),
		StockRetriesExhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stock_retries_exhausted_total",
			Help:      "Orders rejected after every stock retry conflicted",
		}),
		PaymentVerifications: counter("payment_verifications_total", "Card payment verifications by outcome", "result"),

		OrdersCreated: counter("orders_created_total", "Orders created", "payment_method"),
		OrderValue: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_value_dollars",
			Help:      "Order total in dollars",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"payment_method"}),
		OrderItemCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_item_count",
			Help:      "Units per order",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		OrderStatusChanges:  counter("order_status_changes_total", "Fulfillment status transitions", "from", "to"),
		PaymentStatusUpdate: counter("payment_status_updates_total", "Payment status changes applied from webhooks", "status"),

		WebhookReceived: counter("webhook_received_total", "Webhook events received", "provider", "event_type"),
		WebhookFailed:   counter("webhook_failed_total", "Webhook events that failed processing", "provider", "event_type"),

		JobsProcessed: counter("jobs_processed_total", "Background jobs processed", "job_type", "result"),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_duration_seconds",
			Help:      "Background job duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job_type"}),

		StripeAPILatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stripe_api_duration_seconds",
			Help:      "Stripe API call duration",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}
}

// Business is the process-wide instance; nil until InitBusinessMetrics.
var Business *BusinessMetrics

// InitBusinessMetrics registers the global instance with the default registry.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, prometheus.DefaultRegisterer)
	return Business
}

func (m *BusinessMetrics) RecordCartAdd(store string) {
	if m == nil {
		return
	}
	m.CartLinesAdded.WithLabelValues(store).Inc()
}

func (m *BusinessMetrics) RecordCartFallback(operation string) {
	if m == nil {
		return
	}
	m.CartFallbacks.WithLabelValues(operation).Inc()
}

func (m *BusinessMetrics) RecordCartReconciled(policy string) {
	if m == nil {
		return
	}
	m.CartReconciled.WithLabelValues(policy).Inc()
}

// RecordCheckout counts one CreateOrder outcome, labelled by error code.
func (m *BusinessMetrics) RecordCheckout(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = domain.ErrorCode(err)
	}
	m.CheckoutAttempts.WithLabelValues(result).Inc()
}

func (m *BusinessMetrics) RecordStockConflict() {
	if m == nil {
		return
	}
	m.StockConflicts.Inc()
}

func (m *BusinessMetrics) RecordStockRetriesExhausted() {
	if m == nil {
		return
	}
	m.StockRetriesExhausted.Inc()
}

func (m *BusinessMetrics) RecordPaymentVerification(result string) {
	if m == nil {
		return
	}
	m.PaymentVerifications.WithLabelValues(result).Inc()
}

// RecordOrder observes a newly created order.
func (m *BusinessMetrics) RecordOrder(order *domain.Order) {
	if m == nil {
		return
	}
	method := string(order.PaymentMethod)
	m.OrdersCreated.WithLabelValues(method).Inc()
	m.OrderValue.WithLabelValues(method).Observe(order.TotalAmount.InexactFloat64())
	m.OrderItemCount.Observe(float64(order.ItemCount()))
}

func (m *BusinessMetrics) RecordStatusChange(from, to domain.OrderStatus) {
	if m == nil {
		return
	}
	m.OrderStatusChanges.WithLabelValues(string(from), string(to)).Inc()
}

func (m *BusinessMetrics) RecordPaymentStatus(status domain.PaymentStatus) {
	if m == nil {
		return
	}
	m.PaymentStatusUpdate.WithLabelValues(string(status)).Inc()
}

func (m *BusinessMetrics) RecordWebhook(provider, eventType string, err error) {
	if m == nil {
		return
	}
	m.WebhookReceived.WithLabelValues(provider, eventType).Inc()
	if err != nil {
		m.WebhookFailed.WithLabelValues(provider, eventType).Inc()
	}
}

func (m *BusinessMetrics) RecordJob(jobType string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.JobsProcessed.WithLabelValues(jobType, result).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(time.Since(started).Seconds())
}

// ObserveStripe records the latency of one Stripe call started at started.
func (m *BusinessMetrics) ObserveStripe(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.StripeAPILatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
