package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ORDER STATUS STATE MACHINE
// =============================================================================

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists the legal next states. Terminal states map to nil.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

// ParseOrderStatus validates s against the five known states.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := orderTransitions[status]; !ok {
		return "", Invalid("order.status", "Invalid status")
	}
	return status, nil
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is legal. Staying in
// the same state is allowed so tracking numbers can be amended.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition returns an ECONFLICT error for an illegal move.
func (s OrderStatus) CheckTransition(next OrderStatus) error {
	if s.CanTransitionTo(next) {
		return nil
	}
	return &Error{
		Code:    ECONFLICT,
		Reason:  ReasonIllegalTransition,
		Op:      "order.status",
		Message: fmt.Sprintf("Cannot change order status from %s to %s", s, next),
	}
}

// =============================================================================
// PAYMENT
// =============================================================================

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "COD"
	PaymentMethodCard PaymentMethod = "card"
)

// ParsePaymentMethod accepts COD (default when blank), card, and stripe as an
// alias for card.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cod":
		return PaymentMethodCOD, nil
	case "card", "stripe":
		return PaymentMethodCard, nil
	default:
		return "", NewValidationError("order.create", "paymentMethod", "Invalid payment method")
	}
}

// PaymentStatus tracks money movement for an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ParsePaymentStatus validates a payment status filter value.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return PaymentStatus(s), nil
	}
	return "", Invalid("order.payment_status", "Invalid payment status")
}

// =============================================================================
// ORDER DOMAIN TYPES
// =============================================================================

// OrderItem is a line captured at order time. UnitPrice is never re-read from
// the catalog after creation.
type OrderItem struct {
	ProductID    string          `json:"productId"`
	ProductTitle string          `json:"title"`
	Image        string          `json:"image,omitempty"`
	Size         string          `json:"size"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"price"`
}

// LineTotal is UnitPrice x Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShippingAddress is the address copy stored on an order.
type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
}

// Order is immutable after creation except for Status, TrackingNumber and
// the payment status fields.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []OrderItem     `json:"items"`
	AddressID       string          `json:"addressId"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Amount          decimal.Decimal `json:"amount"`
	ShippingFee     decimal.Decimal `json:"shippingFee"`
	Tax             decimal.Decimal `json:"tax"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	IsPaid          bool            `json:"isPaid"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	Status          OrderStatus     `json:"status"`
	TrackingNumber  string          `json:"trackingNumber,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ItemsTotal sums the captured line totals.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ItemCount sums item quantities.
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// StockDecrements aggregates the stock to take per (product, size).
func (o *Order) StockDecrements() []StockDecrement {
	index := make(map[[2]string]int)
	var out []StockDecrement
	for _, item := range o.Items {
		key := [2]string{item.ProductID, item.Size}
		if i, ok := index[key]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, StockDecrement{ProductID: item.ProductID, Size: item.Size, Quantity: item.Quantity})
	}
	return out
}

// StockDecrement is one conditional stock change applied at order placement.
// Stores skip sizes without a stock figure but still require the size to
// exist.
type StockDecrement struct {
	ProductID string
	Size      string
	Quantity  int
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Page          int
	Limit         int
}

// Normalize applies paging defaults.
func (f *OrderFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// Offset returns the number of rows to skip.
func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// OrderStats summarises orders for the owner dashboard.
type OrderStats struct {
	TotalOrders  int             `json:"totalOrders"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

// StatusChange is a compare-and-set on an order's fulfillment status.
type StatusChange struct {
	OrderID        string
	From           OrderStatus
	To             OrderStatus
	TrackingNumber string
}

// OrderStore persists orders.
type OrderStore interface {
	// PlaceOrder atomically inserts the order, applies every tracked stock
	// decrement conditionally (stock >= quantity), recomputes the affected
	// products' availability flags, and clears the user's cart provided its
	// version still equals cartVersion. A failed condition returns
	// *StockConflict and leaves nothing changed.
	PlaceOrder(ctx context.Context, order *Order, decrements []StockDecrement, cartVersion int64) error

	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, int, error)
	OrderStats(ctx context.Context) (*OrderStats, error)

	// UpdateOrderStatus applies change only while the stored status equals
	// change.From; otherwise it returns an ECONFLICT error.
	UpdateOrderStatus(ctx context.Context, change StatusChange) (*Order, error)

	UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) (*Order, error)
}
