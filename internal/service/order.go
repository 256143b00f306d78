package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/telemetry"
)

// dashboardRecent is how many orders the owner dashboard shows.
const dashboardRecent = 50

// OrderService covers the read side of orders and the post-creation
// mutations: fulfillment status and payment status.
type OrderService interface {
	// GetOrderByID returns the order if requester owns it or manages the store.
	GetOrderByID(ctx context.Context, requester *domain.User, id string) (*domain.Order, error)

	// GetUserOrders returns the user's orders, newest first. Never nil.
	GetUserOrders(ctx context.Context, userID string) ([]*domain.Order, error)

	ListOrders(ctx context.Context, requester *domain.User, filter domain.OrderFilter) (*OrderPage, error)
	Dashboard(ctx context.Context, requester *domain.User) (*Dashboard, error)

	UpdateOrderStatus(ctx context.Context, requester *domain.User, params UpdateOrderStatusParams) (*domain.Order, error)

	// ApplyPaymentStatus records a processor-side payment outcome on the order
	// holding paymentIntentID. Unknown intents are ignored.
	ApplyPaymentStatus(ctx context.Context, paymentIntentID string, status domain.PaymentStatus) (*domain.Order, error)
}

// UpdateOrderStatusParams is an owner's status change request.
type UpdateOrderStatusParams struct {
	OrderID        string
	Status         string
	TrackingNumber string
}

// OrderPage is one page of the owner order listing.
type OrderPage struct {
	Orders []*domain.Order `json:"orders"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
	Total  int             `json:"total"`
	Pages  int             `json:"pages"`
}

// Dashboard is the owner's order summary.
type Dashboard struct {
	Orders       []*domain.Order `json:"orders"`
	TotalOrders  int             `json:"totalOrders"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

type orderService struct {
	orders   domain.OrderStore
	notifier *Notifier
	timeout  time.Duration
	logger   *slog.Logger
}

// NewOrderService creates a new OrderService instance.
func NewOrderService(orders domain.OrderStore, notifier *Notifier, timeout time.Duration, logger *slog.Logger) OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewNotifier(nil, nil, 0, logger)
	}
	return &orderService{
		orders:   orders,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger.With("service", "order"),
	}
}

func (s *orderService) GetOrderByID(ctx context.Context, requester *domain.User, id string) (*domain.Order, error) {
	const op = "order.get"

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to load order")
	}
	if requester == nil || (order.UserID != requester.ID && !requester.IsOwner()) {
		return nil, ErrOrderForbidden
	}
	return order, nil
}

func (s *orderService) GetUserOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	orders, err := s.orders.ListUserOrders(ctx, userID)
	if err != nil {
		return nil, domain.StoreError(err, "order.list_user", "failed to load orders")
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, nil
}

func (s *orderService) ListOrders(ctx context.Context, requester *domain.User, filter domain.OrderFilter) (*OrderPage, error) {
	const op = "order.list"
	if requester == nil || !requester.IsOwner() {
		return nil, domain.Forbidden(op, "Only store owners can list all orders")
	}
	filter.Normalize()

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	orders, total, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to list orders")
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return &OrderPage{
		Orders: orders,
		Page:   filter.Page,
		Limit:  filter.Limit,
		Total:  total,
		Pages:  (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (s *orderService) Dashboard(ctx context.Context, requester *domain.User) (*Dashboard, error) {
	const op = "order.dashboard"
	if requester == nil || !requester.IsOwner() {
		return nil, domain.Forbidden(op, "Only store owners can view the dashboard")
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	recent, _, err := s.orders.ListOrders(ctx, domain.OrderFilter{Page: 1, Limit: dashboardRecent})
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to list orders")
	}
	stats, err := s.orders.OrderStats(ctx)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to compute order stats")
	}
	if recent == nil {
		recent = []*domain.Order{}
	}
	return &Dashboard{
		Orders:       recent,
		TotalOrders:  stats.TotalOrders,
		TotalRevenue: stats.TotalRevenue,
	}, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, requester *domain.User, params UpdateOrderStatusParams) (*domain.Order, error) {
	const op = "order.update_status"
	if requester == nil || !requester.IsOwner() {
		return nil, ErrOrderNotOwner
	}

	next, err := domain.ParseOrderStatus(params.Status)
	if err != nil {
		return nil, err
	}

	tctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	current, err := s.orders.GetOrder(tctx, params.OrderID)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to load order")
	}
	if err := current.Status.CheckTransition(next); err != nil {
		return nil, err
	}

	tracking := strings.TrimSpace(params.TrackingNumber)
	updated, err := s.orders.UpdateOrderStatus(tctx, domain.StatusChange{
		OrderID:        current.ID,
		From:           current.Status,
		To:             next,
		TrackingNumber: tracking,
	})
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to update order status")
	}

	if current.Status != next {
		telemetry.Business.RecordStatusChange(current.Status, next)
		s.logger.Info("order status changed",
			"order_id", updated.ID,
			"from", current.Status,
			"to", next,
			"by", requester.ID,
		)
	}
	s.notifier.StatusChanged(ctx, updated, current.Status)
	return updated, nil
}

func (s *orderService) ApplyPaymentStatus(ctx context.Context, paymentIntentID string, status domain.PaymentStatus) (*domain.Order, error) {
	const op = "order.payment_status"

	tctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	order, err := s.orders.GetOrderByPaymentIntent(tctx, paymentIntentID)
	if domain.IsCode(err, domain.ENOTFOUND) {
		s.logger.Debug("no order for payment intent", "payment_intent_id", paymentIntentID)
		return nil, nil
	}
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to load order")
	}
	if order.PaymentStatus == status {
		return order, nil
	}
	// A refund is final; a late failure event must not undo a recorded payment.
	if order.PaymentStatus == domain.PaymentStatusRefunded ||
		(order.PaymentStatus == domain.PaymentStatusPaid && status == domain.PaymentStatusFailed) {
		s.logger.Warn("ignoring stale payment status",
			"order_id", order.ID,
			"current", order.PaymentStatus,
			"incoming", status,
		)
		return order, nil
	}

	updated, err := s.orders.UpdatePaymentStatus(tctx, order.ID, status)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to update payment status")
	}
	telemetry.Business.RecordPaymentStatus(status)
	s.logger.Info("order payment status changed",
		"order_id", updated.ID,
		"from", order.PaymentStatus,
		"to", status,
	)
	s.notifier.PaymentStatusChanged(ctx, updated)
	return updated, nil
}
