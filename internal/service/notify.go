package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/events"
	"github.com/dukerupert/agrimart/internal/jobs"
	"github.com/dukerupert/agrimart/internal/telemetry"
)

// Notifier fans out committed order changes to the event bus and the email
// queue. Every failure is logged and swallowed.
type Notifier struct {
	events  events.Publisher
	jobs    jobs.Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. A nil publisher or job store disables
// that channel.
func NewNotifier(publisher events.Publisher, jobStore jobs.Store, timeout time.Duration, logger *slog.Logger) *Notifier {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{events: publisher, jobs: jobStore, timeout: timeout, logger: logger}
}

// OrderCreated publishes orders.created and queues the confirmation email.
func (n *Notifier) OrderCreated(ctx context.Context, order *domain.Order) {
	n.publish(ctx, events.SubjectOrderCreated, events.NewOrderEvent(order))
	n.enqueue(ctx, order.ID, jobs.JobTypeOrderConfirmation, jobs.EnqueueOrderConfirmation)
}

// StatusChanged publishes orders.status_changed and, on shipment, queues the
// shipping notification.
func (n *Notifier) StatusChanged(ctx context.Context, order *domain.Order, previous domain.OrderStatus) {
	ev := events.NewOrderEvent(order)
	ev.PreviousStatus = string(previous)
	n.publish(ctx, events.SubjectOrderStatusChanged, ev)

	if order.Status == domain.OrderStatusShipped && previous != domain.OrderStatusShipped {
		n.enqueue(ctx, order.ID, jobs.JobTypeShippingNotification, jobs.EnqueueShippingNotification)
	}
}

// PaymentStatusChanged publishes the payment status subject.
func (n *Notifier) PaymentStatusChanged(ctx context.Context, order *domain.Order) {
	n.publish(ctx, events.SubjectOrderPaymentStatus, events.NewOrderEvent(order))
}

func (n *Notifier) publish(ctx context.Context, subject string, ev events.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.events.Publish(ctx, subject, ev); err != nil {
		n.logger.Warn("failed to publish order event", "subject", subject, "order_id", ev.OrderID, "error", err)
		telemetry.AddBreadcrumb(ctx, "events", "publish failed", map[string]any{"subject": subject})
	}
}

func (n *Notifier) enqueue(ctx context.Context, orderID, jobType string, fn func(context.Context, jobs.Store, string) error) {
	if n.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := fn(ctx, n.jobs, orderID); err != nil {
		n.logger.Error("failed to enqueue email job", "job_type", jobType, "order_id", orderID, "error", err)
	}
}
