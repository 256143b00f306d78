package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/email"
)

// Job type constants for email jobs
const (
	JobTypeOrderConfirmation    = "email:order_confirmation"
	JobTypeShippingNotification = "email:shipping_notification"
)

// OrderEmailPayload identifies the order an email job renders. The worker
// re-reads the order so the email reflects committed state.
type OrderEmailPayload struct {
	OrderID string `json:"order_id"`
}

// EnqueueOrderConfirmation enqueues an order confirmation email job.
func EnqueueOrderConfirmation(ctx context.Context, store Store, orderID string) error {
	return enqueue(ctx, store, JobTypeOrderConfirmation, OrderEmailPayload{OrderID: orderID})
}

// EnqueueShippingNotification enqueues a shipped notification email job.
func EnqueueShippingNotification(ctx context.Context, store Store, orderID string) error {
	return enqueue(ctx, store, JobTypeShippingNotification, OrderEmailPayload{OrderID: orderID})
}

func enqueue(ctx context.Context, store Store, jobType string, payload any) error {
	job, err := newJob(jobType, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return store.Enqueue(ctx, job)
}

// EmailDeps are the collaborators email jobs need.
type EmailDeps struct {
	Orders domain.OrderStore
	Users  domain.UserStore
	Email  *email.Service
}

// ProcessEmailJob renders and sends the email described by job.
func ProcessEmailJob(ctx context.Context, job *Job, deps EmailDeps) error {
	var payload OrderEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", job.Type, err)
	}

	order, err := deps.Orders.GetOrder(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}

	// The account record only supplies a fallback recipient.
	var user *domain.User
	if deps.Users != nil {
		user, _ = deps.Users.GetUser(ctx, order.UserID)
	}

	switch job.Type {
	case JobTypeOrderConfirmation:
		return deps.Email.SendOrderConfirmation(ctx, email.NewOrderConfirmation(order, user))
	case JobTypeShippingNotification:
		return deps.Email.SendShippingNotification(ctx, email.NewShippingNotification(order, user))
	default:
		return fmt.Errorf("unknown email job type: %s", job.Type)
	}
}
