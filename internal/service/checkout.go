package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/agrimart/internal/billing"
	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/shipping"
	"github.com/dukerupert/agrimart/internal/tax"
	"github.com/dukerupert/agrimart/internal/telemetry"
)

// CheckoutService turns a user's server cart into an order.
type CheckoutService interface {
	// Quote prices the cart for addressID against the live catalog without
	// changing anything.
	Quote(ctx context.Context, user *domain.User, addressID string) (*Quote, error)

	// CreateOrder validates, prices and places the order in one store
	// transaction, retrying a bounded number of times on stock conflicts.
	CreateOrder(ctx context.Context, user *domain.User, params CreateOrderParams) (*domain.Order, error)
}

// CreateOrderParams is the checkout request.
type CreateOrderParams struct {
	AddressID       string
	PaymentMethod   string
	PaymentIntentID string
}

// Quote is a priced cart. Items carry the unit prices read at quote time.
type Quote struct {
	Items       []domain.OrderItem `json:"items"`
	Amount      decimal.Decimal    `json:"amount"`
	ShippingFee decimal.Decimal    `json:"shippingFee"`
	Tax         decimal.Decimal    `json:"tax"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	AmountCents int64              `json:"amountCents"`
	Currency    string             `json:"currency"`

	address     *domain.Address
	cartVersion int64
}

// CheckoutConfig carries pricing and retry settings.
type CheckoutConfig struct {
	Currency      string
	StockRetryMax uint64
	RetryBase     time.Duration
	Timeout       time.Duration
}

type checkoutService struct {
	products  domain.ProductStore
	carts     domain.CartRepository
	addresses domain.AddressStore
	orders    domain.OrderStore
	billing   billing.Provider
	shipping  shipping.Provider
	tax       tax.Calculator
	notifier  *Notifier
	config    CheckoutConfig
	logger    *slog.Logger
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(
	products domain.ProductStore,
	carts domain.CartRepository,
	addresses domain.AddressStore,
	orders domain.OrderStore,
	billingProvider billing.Provider,
	shippingProvider shipping.Provider,
	taxCalculator tax.Calculator,
	notifier *Notifier,
	config CheckoutConfig,
	logger *slog.Logger,
) CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Currency == "" {
		config.Currency = "usd"
	}
	if notifier == nil {
		notifier = NewNotifier(nil, nil, 0, logger)
	}
	if config.RetryBase <= 0 {
		config.RetryBase = 25 * time.Millisecond
	}
	return &checkoutService{
		products:  products,
		carts:     carts,
		addresses: addresses,
		orders:    orders,
		billing:   billingProvider,
		shipping:  shippingProvider,
		tax:       taxCalculator,
		notifier:  notifier,
		config:    config,
		logger:    logger.With("service", "checkout"),
	}
}

// AmountCents converts a decimal amount to minor units.
func AmountCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (s *checkoutService) Quote(ctx context.Context, user *domain.User, addressID string) (*Quote, error) {
	return s.quote(ctx, "checkout.quote", user, addressID)
}

func (s *checkoutService) quote(ctx context.Context, op string, user *domain.User, addressID string) (*Quote, error) {
	if strings.TrimSpace(addressID) == "" {
		return nil, domain.NewValidationError(op, "addressId", "Address is required")
	}

	tctx, cancel := bound(ctx, s.config.Timeout)
	defer cancel()

	addr, err := s.addresses.GetAddress(tctx, user.ID, addressID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.AddressNotFound(op, addressID)
		}
		return nil, domain.StoreError(err, op, "failed to load address")
	}

	cart, err := s.carts.CartFor(user.ID).Cart(tctx)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to load cart")
	}
	if cart.IsEmpty() {
		return nil, domain.EmptyCart(op)
	}

	snapshot, err := s.products.GetProducts(tctx, cart.ProductIDs())
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to load products")
	}

	q := &Quote{
		Items:       make([]domain.OrderItem, 0, len(cart.Lines)),
		Amount:      decimal.Zero,
		Currency:    s.config.Currency,
		address:     addr,
		cartVersion: cart.Version,
	}
	for _, line := range cart.Lines {
		p, ok := snapshot[line.ProductID]
		if !ok {
			return nil, domain.NotFound(op, "product", line.ProductID)
		}
		if err := checkLine(op, p, line); err != nil {
			return nil, err
		}
		price, _ := p.PriceFor(line.Size)
		item := domain.OrderItem{
			ProductID:    p.ID,
			ProductTitle: p.Title,
			Image:        p.Image(),
			Size:         line.Size,
			Quantity:     line.Quantity,
			UnitPrice:    price,
		}
		q.Items = append(q.Items, item)
		q.Amount = q.Amount.Add(item.LineTotal())
	}

	rate, err := shipping.Cheapest(tctx, s.shipping, shipping.RateParams{
		Destination: shipping.Address{City: addr.City, State: addr.State, PostalCode: addr.ZipCode, Country: addr.Country},
		Subtotal:    q.Amount,
		ItemCount:   cart.Count(),
	})
	if err != nil {
		return nil, domain.Unavailable(err, op, "Shipping rates unavailable")
	}
	q.ShippingFee = rate.Cost

	taxResult, err := s.tax.CalculateTax(tctx, tax.TaxParams{
		Subtotal:        q.Amount,
		Shipping:        q.ShippingFee,
		ShippingAddress: tax.Address{City: addr.City, State: addr.State, PostalCode: addr.ZipCode, Country: addr.Country},
	})
	if err != nil {
		return nil, domain.Unavailable(err, op, "Tax calculation unavailable")
	}
	q.Tax = taxResult.Total

	q.TotalAmount = q.Amount.Add(q.ShippingFee).Add(q.Tax)
	q.AmountCents = AmountCents(q.TotalAmount)
	return q, nil
}

func (s *checkoutService) CreateOrder(ctx context.Context, user *domain.User, params CreateOrderParams) (*domain.Order, error) {
	const op = "order.create"

	ctx, finish := telemetry.StartSpan(ctx, "checkout.create_order", "place order")
	defer finish()

	order, err := s.createOrder(ctx, op, user, params)
	telemetry.Business.RecordCheckout(err)
	if err != nil {
		return nil, err
	}

	telemetry.Business.RecordOrder(order)
	s.logger.Info("order created",
		"order_id", order.ID,
		"user_id", order.UserID,
		"total", order.TotalAmount.StringFixed(2),
		"payment_method", order.PaymentMethod,
	)
	s.notifier.OrderCreated(ctx, order)
	return order, nil
}

func (s *checkoutService) createOrder(ctx context.Context, op string, user *domain.User, params CreateOrderParams) (*domain.Order, error) {
	method, err := domain.ParsePaymentMethod(params.PaymentMethod)
	if err != nil {
		return nil, err
	}
	intentID := strings.TrimSpace(params.PaymentIntentID)
	if method == domain.PaymentMethodCard && intentID == "" {
		return nil, ErrPaymentIntentNeeded
	}

	var intent *billing.PaymentIntent
	if method == domain.PaymentMethodCard {
		tctx, cancel := bound(ctx, s.config.Timeout)
		intent, err = s.billing.GetPaymentIntent(tctx, billing.GetPaymentIntentParams{PaymentIntentID: intentID})
		cancel()
		if err != nil {
			if domain.IsCode(billingError(err, op), domain.ENOTFOUND) {
				telemetry.Business.RecordPaymentVerification("not_found")
				return nil, domain.PaymentNotCompleted(op, "Payment not completed")
			}
			return nil, billingError(err, op)
		}
	}

	backoff := retry.WithMaxRetries(s.config.StockRetryMax, retry.NewExponential(s.config.RetryBase))
	order, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*domain.Order, error) {
		q, err := s.quote(ctx, op, user, params.AddressID)
		if err != nil {
			return nil, err
		}
		if intent != nil {
			if err := s.verifyPayment(op, user, intent, q); err != nil {
				return nil, err
			}
		}

		order := newOrder(user, q, method, intentID)
		tctx, cancel := bound(ctx, s.config.Timeout)
		defer cancel()

		err = s.orders.PlaceOrder(tctx, order, order.StockDecrements(), q.cartVersion)
		if domain.IsStockConflict(err) {
			telemetry.Business.RecordStockConflict()
			s.logger.Debug("stock conflict, retrying checkout", "user_id", user.ID, "error", err)
			return nil, retry.RetryableError(err)
		}
		if err != nil {
			return nil, domain.StoreError(err, op, "failed to place order")
		}
		return order, nil
	})
	if err == nil {
		return order, nil
	}

	if domain.IsStockConflict(err) {
		telemetry.Business.RecordStockRetriesExhausted()
		return nil, s.conflictError(ctx, op, user, err)
	}
	return nil, domain.StoreError(err, op, "Checkout timed out; please try again")
}

// checkLine applies the cart checks, except that a product whose flag went
// false because the requested size sold out reports the shortfall rather
// than a bare out of stock.
func checkLine(op string, p *domain.Product, line domain.CartLine) error {
	if stock, tracked := p.StockFor(line.Size); !p.InStock && tracked && stock < line.Quantity {
		return domain.InsufficientStock(op, p.Title, line.Size, stock, line.Quantity)
	}
	return p.CheckAvailable(op, line.Size, line.Quantity)
}

// verifyPayment re-checks a card payment against the freshly priced quote.
func (s *checkoutService) verifyPayment(op string, user *domain.User, intent *billing.PaymentIntent, q *Quote) error {
	result := "verified"
	defer func() { telemetry.Business.RecordPaymentVerification(result) }()

	switch {
	case intent.Status() != billing.StatusSucceeded:
		result = "not_succeeded"
		return domain.PaymentNotCompleted(op, "Payment not completed")
	case intent.AmountCents != q.AmountCents:
		result = "amount_mismatch"
		return domain.PaymentNotCompleted(op, "Payment amount does not match the order total")
	case !strings.EqualFold(intent.Currency, q.Currency):
		result = "currency_mismatch"
		return domain.PaymentNotCompleted(op, "Payment currency does not match")
	case intent.UserID() != user.ID:
		result = "owner_mismatch"
		return domain.PaymentNotCompleted(op, "Payment belongs to another account")
	}
	return nil
}

// conflictError turns an exhausted stock conflict into the caller-facing
// insufficient stock error.
func (s *checkoutService) conflictError(ctx context.Context, op string, user *domain.User, err error) error {
	var sc *domain.StockConflict
	if !errors.As(err, &sc) || sc.CartChanged || sc.ProductID == "" {
		return &domain.Error{
			Code:    domain.ECONFLICT,
			Reason:  domain.ReasonStockConflict,
			Op:      op,
			Message: "Your cart changed during checkout; please review it and try again",
			Err:     err,
		}
	}

	tctx, cancel := bound(ctx, s.config.Timeout)
	defer cancel()

	title, available, requested := sc.ProductID, 0, 0
	if p, perr := s.products.GetProduct(tctx, sc.ProductID); perr == nil {
		title = p.Title
		available, _ = p.StockFor(sc.Size)
	}
	if cart, cerr := s.carts.CartFor(user.ID).Cart(tctx); cerr == nil {
		for _, l := range cart.Lines {
			if l.ProductID == sc.ProductID && l.Size == sc.Size {
				requested += l.Quantity
			}
		}
	}
	return domain.InsufficientStock(op, title, sc.Size, available, requested)
}


func newOrder(user *domain.User, q *Quote, method domain.PaymentMethod, intentID string) *domain.Order {
	order := &domain.Order{
		UserID:          user.ID,
		Items:           q.Items,
		AddressID:       q.address.ID,
		ShippingAddress: q.address.Snapshot(),
		Amount:          q.Amount,
		ShippingFee:     q.ShippingFee,
		Tax:             q.Tax,
		TotalAmount:     q.TotalAmount,
		PaymentMethod:   method,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
	}
	if method == domain.PaymentMethodCard {
		order.PaymentStatus = domain.PaymentStatusPaid
		order.IsPaid = true
		order.PaymentIntentID = intentID
	}
	return order
}
