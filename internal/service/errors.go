package service

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/agrimart/internal/billing"
	"github.com/dukerupert/agrimart/internal/domain"
)

// Order errors
var (
	ErrOrderForbidden      = domain.Errorf(domain.EFORBIDDEN, "order.get", "You do not have access to this order")
	ErrOrderNotOwner       = domain.Errorf(domain.EFORBIDDEN, "order.update_status", "Only store owners can update orders")
	ErrPaymentIntentNeeded = domain.NewValidationError("order.create", "paymentIntentId", "Payment intent is required for card payments")
)

// Payment errors
var (
	ErrPaymentNotFound  = domain.Errorf(domain.ENOTFOUND, "payment.get", "Payment not found")
	ErrPaymentForbidden = domain.Errorf(domain.EFORBIDDEN, "payment.get", "You do not have access to this payment")
)

// billingError classifies a payment provider failure.
func billingError(err error, op string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, billing.ErrPaymentIntentNotFound) {
		return domain.WrapError(err, domain.ENOTFOUND, op, "Payment not found")
	}
	if errors.Is(err, billing.ErrAmountTooSmall) {
		return domain.WrapError(err, domain.EINVALID, op, "Order total is below the card payment minimum")
	}
	var se *billing.StripeError
	if errors.As(err, &se) {
		if se.IsDeclined() {
			return domain.WrapError(err, domain.EPAYMENT, op, "Your card was declined")
		}
		if !se.IsTemporary() && se.HTTPStatus >= 400 && se.HTTPStatus < 500 {
			return domain.WrapError(err, domain.EPAYMENT, op, se.Message)
		}
	}
	return domain.Unavailable(err, op, "Payment provider unavailable")
}

// bound applies the per-operation timeout; zero means no deadline.
func bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
