package email

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/agrimart/internal/domain"
)

// Template is implemented by every renderable message.
type Template interface {
	Subject() string
	TemplateName() string
}

// OrderConfirmationEmail is sent once an order has been placed.
type OrderConfirmationEmail struct {
	OrderID       string
	CustomerName  string
	CustomerEmail string
	OrderDate     time.Time
	Items         []OrderItem
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod string
	ShippingAddr  Address
}

func (e OrderConfirmationEmail) Subject() string {
	return "Order Confirmation - " + shortID(e.OrderID)
}

func (e OrderConfirmationEmail) TemplateName() string {
	return "order_confirmation.html"
}

// ShippingNotificationEmail is sent when an order moves to shipped.
type ShippingNotificationEmail struct {
	OrderID        string
	CustomerName   string
	CustomerEmail  string
	ShippedDate    time.Time
	Items          []OrderItem
	ShippingAddr   Address
	TrackingNumber string
}

func (e ShippingNotificationEmail) Subject() string {
	return "Your Order Has Shipped - " + shortID(e.OrderID)
}

func (e ShippingNotificationEmail) TemplateName() string {
	return "shipping_notification.html"
}

// OrderItem is a line as printed in an email.
type OrderItem struct {
	ProductName string
	Size        string
	Quantity    int
	Price       decimal.Decimal
	Total       decimal.Decimal
	ImageURL    string
}

// Address is a printable shipping address.
type Address struct {
	Name    string
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
	Phone   string
}

// NewOrderConfirmation builds the confirmation message for order. The
// recipient comes from the order's address snapshot, falling back to the
// account email.
func NewOrderConfirmation(order *domain.Order, user *domain.User) OrderConfirmationEmail {
	name, to := recipient(order, user)
	return OrderConfirmationEmail{
		OrderID:       order.ID,
		CustomerName:  name,
		CustomerEmail: to,
		OrderDate:     order.CreatedAt,
		Items:         itemsFor(order),
		Subtotal:      order.Amount,
		Shipping:      order.ShippingFee,
		Tax:           order.Tax,
		Total:         order.TotalAmount,
		PaymentMethod: paymentLabel(order.PaymentMethod),
		ShippingAddr:  addressFor(order.ShippingAddress),
	}
}

// NewShippingNotification builds the shipped message for order.
func NewShippingNotification(order *domain.Order, user *domain.User) ShippingNotificationEmail {
	name, to := recipient(order, user)
	return ShippingNotificationEmail{
		OrderID:        order.ID,
		CustomerName:   name,
		CustomerEmail:  to,
		ShippedDate:    order.UpdatedAt,
		Items:          itemsFor(order),
		ShippingAddr:   addressFor(order.ShippingAddress),
		TrackingNumber: order.TrackingNumber,
	}
}

func recipient(order *domain.Order, user *domain.User) (name, to string) {
	addr := order.ShippingAddress
	name = addr.FirstName
	if addr.LastName != "" {
		name += " " + addr.LastName
	}
	to = addr.Email
	if user != nil {
		if to == "" {
			to = user.Email
		}
		if name == "" {
			name = user.FullName()
		}
	}
	return name, to
}

func itemsFor(order *domain.Order) []OrderItem {
	items := make([]OrderItem, len(order.Items))
	for i, it := range order.Items {
		items[i] = OrderItem{
			ProductName: it.ProductTitle,
			Size:        it.Size,
			Quantity:    it.Quantity,
			Price:       it.UnitPrice,
			Total:       it.LineTotal(),
			ImageURL:    it.Image,
		}
	}
	return items
}

func addressFor(a domain.ShippingAddress) Address {
	name := a.FirstName
	if a.LastName != "" {
		name += " " + a.LastName
	}
	return Address{
		Name:    name,
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		ZipCode: a.ZipCode,
		Country: a.Country,
		Phone:   a.Phone,
	}
}

func paymentLabel(m domain.PaymentMethod) string {
	if m == domain.PaymentMethodCard {
		return "Card"
	}
	return "Cash on delivery"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}
