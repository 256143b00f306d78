// Package events publishes order lifecycle notifications to a message bus.
package events

//go:generate mockgen -destination=mock_publisher.go -package=events . Publisher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/agrimart/internal/domain"
)

// Subjects, relative to the configured prefix.
const (
	SubjectOrderCreated       = "orders.created"
	SubjectOrderStatusChanged = "orders.status_changed"
	SubjectOrderPaymentStatus = "orders.payment_status_changed"
)

// Publisher sends an event to subject. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close() error
}

// OrderEvent is the payload of every order subject.
type OrderEvent struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	UserID         string    `json:"userId"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	PaymentStatus  string    `json:"paymentStatus"`
	PaymentMethod  string    `json:"paymentMethod"`
	TotalAmount    string    `json:"totalAmount"`
	ItemCount      int       `json:"itemCount"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewOrderEvent snapshots order into an event.
func NewOrderEvent(order *domain.Order) OrderEvent {
	return OrderEvent{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		PaymentMethod:  string(order.PaymentMethod),
		TotalAmount:    order.TotalAmount.StringFixed(2),
		ItemCount:      order.ItemCount(),
		TrackingNumber: order.TrackingNumber,
		OccurredAt:     time.Now().UTC(),
	}
}

// NopPublisher discards every event. Used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
