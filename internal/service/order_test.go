package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/events"
	"github.com/dukerupert/agrimart/internal/jobs"
	"github.com/dukerupert/agrimart/internal/memory"
)

// placeOrder stores a COD order for user directly.
func placeOrder(t *testing.T, store *memory.Store, user *domain.User, intentID string) *domain.Order {
	t.Helper()
	p := seedProduct(t, store, "Trowel", map[string]string{"std": "5.00"}, nil)
	o := &domain.Order{
		UserID:          user.ID,
		Items:           []domain.OrderItem{{ProductID: p.ID, ProductTitle: p.Title, Size: "std", Quantity: 2, UnitPrice: dec("5")}},
		Amount:          dec("10"),
		ShippingFee:     dec("10"),
		Tax:             dec("0.20"),
		TotalAmount:     dec("20.20"),
		PaymentMethod:   domain.PaymentMethodCOD,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		PaymentIntentID: intentID,
	}
	cart, err := store.CartFor(user.ID).Cart(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.PlaceOrder(context.Background(), o, nil, cart.Version))
	return o
}

func TestOrderService_GetOrderByID_Ownership(t *testing.T) {
	store := memory.New()
	svc := NewOrderService(store, nil, time.Second, nil)
	ctx := context.Background()

	buyer := seedUser(t, store, "buyer", domain.RoleUser)
	stranger := seedUser(t, store, "stranger", domain.RoleUser)
	owner := seedUser(t, store, "owner", domain.RoleOwner)
	admin := seedUser(t, store, "admin", domain.RoleAdmin)
	order := placeOrder(t, store, buyer, "")

	for _, u := range []*domain.User{buyer, owner, admin} {
		got, err := svc.GetOrderByID(ctx, u, order.ID)
		require.NoError(t, err, u.Role)
		assert.Equal(t, order.ID, got.ID)
	}

	_, err := svc.GetOrderByID(ctx, stranger, order.ID)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	_, err = svc.GetOrderByID(ctx, buyer, "missing")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestOrderService_GetUserOrders(t *testing.T) {
	store := memory.New()
	svc := NewOrderService(store, nil, time.Second, nil)
	ctx := context.Background()

	buyer := seedUser(t, store, "buyer", domain.RoleUser)
	orders, err := svc.GetUserOrders(ctx, buyer.ID)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)

	first := placeOrder(t, store, buyer, "")
	second := placeOrder(t, store, buyer, "")

	orders, err = svc.GetUserOrders(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestOrderService_ListOrdersAndDashboard(t *testing.T) {
	store := memory.New()
	svc := NewOrderService(store, nil, time.Second, nil)
	ctx := context.Background()

	buyer := seedUser(t, store, "buyer", domain.RoleUser)
	owner := seedUser(t, store, "owner", domain.RoleOwner)
	for i := 0; i < 3; i++ {
		placeOrder(t, store, buyer, "")
	}
	paid := placeOrder(t, store, buyer, "pi_paid")
	_, err := store.UpdatePaymentStatus(ctx, paid.ID, domain.PaymentStatusPaid)
	require.NoError(t, err)

	_, err = svc.ListOrders(ctx, buyer, domain.OrderFilter{})
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
	_, err = svc.Dashboard(ctx, buyer)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	page, err := svc.ListOrders(ctx, owner, domain.OrderFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Orders, 1)

	page, err = svc.ListOrders(ctx, owner, domain.OrderFilter{PaymentStatus: domain.PaymentStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	dash, err := svc.Dashboard(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 4, dash.TotalOrders)
	assert.True(t, dash.TotalRevenue.Equal(dec("20.20")), "revenue = %s", dash.TotalRevenue)
	assert.Len(t, dash.Orders, 4)
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	store := memory.New()
	svc := NewOrderService(store, NewNotifier(nil, store, time.Second, nil), time.Second, nil)
	ctx := context.Background()

	buyer := seedUser(t, store, "buyer", domain.RoleUser)
	owner := seedUser(t, store, "owner", domain.RoleOwner)
	order := placeOrder(t, store, buyer, "")

	_, err := svc.UpdateOrderStatus(ctx, buyer, UpdateOrderStatusParams{OrderID: order.ID, Status: "processing"})
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	_, err = svc.UpdateOrderStatus(ctx, owner, UpdateOrderStatusParams{OrderID: order.ID, Status: "lost"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.UpdateOrderStatus(ctx, owner, UpdateOrderStatusParams{OrderID: order.ID, Status: "delivered"})
	assert.True(t, domain.IsReason(err, domain.ReasonIllegalTransition), "got %v", err)

	steps := []struct {
		status   string
		tracking string
	}{
		{"processing", ""},
		{"shipped", "TRK-1"},
		{"shipped", "TRK-2"},
		{"delivered", ""},
	}
	for _, step := range steps {
		got, err := svc.UpdateOrderStatus(ctx, owner, UpdateOrderStatusParams{OrderID: order.ID, Status: step.status, TrackingNumber: step.tracking})
		require.NoError(t, err, step.status)
		assert.Equal(t, domain.OrderStatus(step.status), got.Status)
	}

	final, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRK-2", final.TrackingNumber)

	_, err = svc.UpdateOrderStatus(ctx, owner, UpdateOrderStatusParams{OrderID: order.ID, Status: "cancelled"})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	var shipped int
	for _, j := range store.Jobs() {
		if j.Type == jobs.JobTypeShippingNotification {
			shipped++
		}
	}
	assert.Equal(t, 1, shipped, "one shipping email despite the tracking amendment")
}

func TestOrderService_UpdateOrderStatus_PublishesEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := events.NewMockPublisher(ctrl)

	store := memory.New()
	svc := NewOrderService(store, NewNotifier(publisher, nil, time.Second, nil), time.Second, nil)
	ctx := context.Background()

	buyer := seedUser(t, store, "buyer", domain.RoleUser)
	owner := seedUser(t, store, "owner", domain.RoleOwner)
	order := placeOrder(t, store, buyer, "")

	publisher.EXPECT().
		Publish(gomock.Any(), events.SubjectOrderStatusChanged, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, ev any) error {
			e := ev.(events.OrderEvent)
			assert.Equal(t, order.ID, e.OrderID)
			assert.Equal(t, "pending", e.PreviousStatus)
			return errors.New("nats: no responders")
		})

	// A failed publish never fails the update.
	got, err := svc.UpdateOrderStatus(ctx, owner, UpdateOrderStatusParams{OrderID: order.ID, Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
}

func TestOrderService_ApplyPaymentStatus(t *testing.T) {
	store := memory.New()
	svc := NewOrderService(store, nil, time.Second, nil)
	ctx := context.Background()

	buyer := seedUser(t, store, "buyer", domain.RoleUser)
	order := placeOrder(t, store, buyer, "pi_123")

	got, err := svc.ApplyPaymentStatus(ctx, "pi_unknown", domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = svc.ApplyPaymentStatus(ctx, "pi_123", domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)

	// A late failure does not undo a payment.
	got, err = svc.ApplyPaymentStatus(ctx, "pi_123", domain.PaymentStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)

	got, err = svc.ApplyPaymentStatus(ctx, "pi_123", domain.PaymentStatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, got.PaymentStatus)
	assert.False(t, got.IsPaid)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, stored.PaymentStatus)
}
