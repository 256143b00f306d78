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

// Cart reconcile policies applied at sign-in.
const (
	ReconcileServer = "server"
	ReconcileMerge  = "merge"
)

// NotSyncedWarning is attached to a cart view when a signed-in user's
// change could only be kept on the device.
const NotSyncedWarning = "cart saved on this device only; not synced"

// CartSession identifies whose cart an operation touches. The store is
// chosen from it at the start of every call: the server cart when User is
// set, the device-local Guest store otherwise.
type CartSession struct {
	User  *domain.User
	Guest domain.CartStore
}

// CartService provides business logic for shopping cart operations.
type CartService interface {
	View(ctx context.Context, sess CartSession) (*CartView, error)
	Add(ctx context.Context, sess CartSession, productID, size string, quantity int) (*CartView, error)

	// UpdateQuantity overwrites a line. Zero removes it; removing an absent
	// line succeeds.
	UpdateQuantity(ctx context.Context, sess CartSession, productID, size string, quantity int) (*CartView, error)

	Remove(ctx context.Context, sess CartSession, productID, size string) (*CartView, error)
	Clear(ctx context.Context, sess CartSession) (*CartView, error)
	Count(ctx context.Context, sess CartSession) (int, error)

	// Reconcile folds the guest cart into the server cart at sign-in
	// according to the configured policy and clears the guest cart.
	Reconcile(ctx context.Context, sess CartSession) (*CartView, error)
}

// CartView is the priced cart returned to clients.
type CartView struct {
	Items   []CartViewLine  `json:"items"`
	Count   int             `json:"count"`
	Amount  decimal.Decimal `json:"amount"`
	Warning string          `json:"warning,omitempty"`
}

// CartViewLine is a cart line with catalog details when the product still
// exists. Missing products show Available=false and price zero.
type CartViewLine struct {
	ProductID string          `json:"productId"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Title     string          `json:"title,omitempty"`
	Image     string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Available bool            `json:"available"`
}

type cartService struct {
	products domain.ProductStore
	carts    domain.CartRepository
	policy   string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCartService creates a new CartService instance.
func NewCartService(products domain.ProductStore, carts domain.CartRepository, policy string, timeout time.Duration, logger *slog.Logger) CartService {
	if logger == nil {
		logger = slog.Default()
	}
	if policy != ReconcileMerge {
		policy = ReconcileServer
	}
	return &cartService{
		products: products,
		carts:    carts,
		policy:   policy,
		timeout:  timeout,
		logger:   logger.With("service", "cart"),
	}
}

// GetAmount prices cart against a catalog snapshot. Lines whose product is
// absent contribute zero.
func GetAmount(cart *domain.Cart, snapshot map[string]*domain.Product) decimal.Decimal {
	return cart.Amount(snapshot)
}

// viewAfter renders the cart a mutation just wrote. After a fallback the
// change only exists on the device, so the device cart is shown.
func (s *cartService) viewAfter(ctx context.Context, sess CartSession, warning string) (*CartView, error) {
	if warning == "" {
		return s.View(ctx, sess)
	}
	cart, err := sess.Guest.Cart(ctx)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, cart, warning)
}

func (s *cartService) View(ctx context.Context, sess CartSession) (*CartView, error) {
	var cart *domain.Cart
	warning, err := s.withStore(ctx, sess, "cart.get", func(ctx context.Context, store domain.CartStore) error {
		var err error
		cart, err = store.Cart(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.render(ctx, cart, warning)
}

func (s *cartService) Count(ctx context.Context, sess CartSession) (int, error) {
	var cart *domain.Cart
	_, err := s.withStore(ctx, sess, "cart.count", func(ctx context.Context, store domain.CartStore) error {
		var err error
		cart, err = store.Cart(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return cart.Count(), nil
}

func (s *cartService) Add(ctx context.Context, sess CartSession, productID, size string, quantity int) (*CartView, error) {
	const op = "cart.add"

	if err := validateLine(op, productID, size); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, domain.NewValidationError(op, "quantity", "Quantity must be at least 1")
	}
	if quantity > domain.MaxLineQuantity {
		return nil, domain.QuantityTooLarge(op)
	}
	if err := s.checkProduct(ctx, op, productID, size, quantity); err != nil {
		return nil, err
	}

	warning, err := s.withStore(ctx, sess, op, func(ctx context.Context, store domain.CartStore) error {
		return store.AddLine(ctx, productID, size, quantity)
	})
	if err != nil {
		return nil, err
	}
	telemetry.Business.RecordCartAdd(storeLabel(sess, warning))
	return s.viewAfter(ctx, sess, warning)
}

func (s *cartService) UpdateQuantity(ctx context.Context, sess CartSession, productID, size string, quantity int) (*CartView, error) {
	const op = "cart.update"

	if err := validateLine(op, productID, size); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, domain.NewValidationError(op, "quantity", "Quantity cannot be negative")
	}
	if quantity > domain.MaxLineQuantity {
		return nil, domain.QuantityTooLarge(op)
	}
	if quantity > 0 {
		if err := s.checkProduct(ctx, op, productID, size, quantity); err != nil {
			return nil, err
		}
	}

	var found bool
	warning, err := s.withStore(ctx, sess, op, func(ctx context.Context, store domain.CartStore) error {
		var err error
		found, err = store.SetLine(ctx, productID, size, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found && quantity > 0 {
		return nil, domain.NotFoundInCart(op, productID, size)
	}
	return s.viewAfter(ctx, sess, warning)
}

func (s *cartService) Remove(ctx context.Context, sess CartSession, productID, size string) (*CartView, error) {
	const op = "cart.remove"
	if err := validateLine(op, productID, size); err != nil {
		return nil, err
	}

	warning, err := s.withStore(ctx, sess, op, func(ctx context.Context, store domain.CartStore) error {
		return store.RemoveLine(ctx, productID, size)
	})
	if err != nil {
		return nil, err
	}
	return s.viewAfter(ctx, sess, warning)
}

func (s *cartService) Clear(ctx context.Context, sess CartSession) (*CartView, error) {
	warning, err := s.withStore(ctx, sess, "cart.clear", func(ctx context.Context, store domain.CartStore) error {
		return store.Clear(ctx)
	})
	if err != nil {
		return nil, err
	}
	return s.viewAfter(ctx, sess, warning)
}

func (s *cartService) Reconcile(ctx context.Context, sess CartSession) (*CartView, error) {
	const op = "cart.reconcile"
	if sess.User == nil {
		return nil, domain.Unauthorized(op, "Sign in to sync your cart")
	}

	guest, err := sess.Guest.Cart(ctx)
	if err != nil {
		return nil, err
	}

	if s.policy == ReconcileMerge && !guest.IsEmpty() {
		server := s.carts.CartFor(sess.User.ID)
		snapshot, err := s.snapshot(ctx, op, guest)
		if err != nil {
			return nil, err
		}
		for _, line := range guest.Lines {
			p, ok := snapshot[line.ProductID]
			if !ok {
				continue
			}
			if err := p.CheckAvailable(op, line.Size, line.Quantity); err != nil {
				s.logger.Debug("skipping guest line", "product_id", line.ProductID, "size", line.Size, "reason", domain.ErrorReason(err))
				continue
			}
			tctx, cancel := bound(ctx, s.timeout)
			err := server.AddLine(tctx, line.ProductID, line.Size, line.Quantity)
			cancel()
			if domain.IsValidationError(err) {
				s.logger.Debug("skipping guest line", "product_id", line.ProductID, "size", line.Size, "error", err)
				continue
			}
			if err != nil {
				// Keep the guest cart so nothing is lost.
				s.logger.Warn("cart merge interrupted", "user_id", sess.User.ID, "error", err)
				telemetry.Business.RecordCartFallback(op)
				return s.viewAfter(ctx, sess, NotSyncedWarning)
			}
		}
	}

	if err := sess.Guest.Clear(ctx); err != nil {
		return nil, err
	}
	telemetry.Business.RecordCartReconciled(s.policy)
	s.logger.Info("cart reconciled", "user_id", sess.User.ID, "policy", s.policy, "guest_lines", len(guest.Lines))
	return s.View(ctx, sess)
}

// withStore runs fn against the session's store. A signed-in user's store
// failure that is not the caller's fault falls back to the guest store and
// returns the not-synced warning.
func (s *cartService) withStore(ctx context.Context, sess CartSession, op string, fn func(context.Context, domain.CartStore) error) (string, error) {
	if sess.User == nil {
		return "", fn(ctx, sess.Guest)
	}

	tctx, cancel := bound(ctx, s.timeout)
	err := fn(tctx, s.carts.CartFor(sess.User.ID))
	cancel()
	if err == nil {
		return "", nil
	}
	if code := domain.ErrorCode(err); code != domain.EUNAVAILABLE && code != domain.EINTERNAL {
		return "", err
	}

	s.logger.Warn("server cart unavailable, using device cart",
		"op", op, "user_id", sess.User.ID, "error", err)
	telemetry.Business.RecordCartFallback(op)
	if err := fn(ctx, sess.Guest); err != nil {
		return "", err
	}
	return NotSyncedWarning, nil
}

func (s *cartService) checkProduct(ctx context.Context, op, productID, size string, quantity int) error {
	tctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	p, err := s.products.GetProduct(tctx, productID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return domain.NotFound(op, "product", productID)
		}
		return domain.StoreError(err, op, "failed to load product")
	}
	return p.CheckAvailable(op, size, quantity)
}

func (s *cartService) snapshot(ctx context.Context, op string, cart *domain.Cart) (map[string]*domain.Product, error) {
	if cart.IsEmpty() {
		return map[string]*domain.Product{}, nil
	}
	tctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	snapshot, err := s.products.GetProducts(tctx, cart.ProductIDs())
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to load products")
	}
	return snapshot, nil
}

func (s *cartService) render(ctx context.Context, cart *domain.Cart, warning string) (*CartView, error) {
	snapshot, err := s.snapshot(ctx, "cart.view", cart)
	if err != nil {
		return nil, err
	}

	view := &CartView{
		Items:   make([]CartViewLine, 0, len(cart.Lines)),
		Count:   cart.Count(),
		Amount:  GetAmount(cart, snapshot),
		Warning: warning,
	}
	for _, l := range cart.Lines {
		line := CartViewLine{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity}
		if p, ok := snapshot[l.ProductID]; ok {
			line.Title = p.Title
			line.Image = p.Image()
			if price, ok := p.PriceFor(l.Size); ok {
				line.UnitPrice = price
				line.LineTotal = price.Mul(decimal.NewFromInt(int64(l.Quantity)))
				line.Available = p.InStock
			}
		}
		view.Items = append(view.Items, line)
	}
	return view, nil
}


func validateLine(op, productID, size string) error {
	fields := make(map[string]string)
	if strings.TrimSpace(productID) == "" {
		fields["productId"] = "Product is required"
	}
	if strings.TrimSpace(size) == "" {
		fields["size"] = "Size is required"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Op: op, Fields: fields}
	}
	return nil
}

func storeLabel(sess CartSession, warning string) string {
	if sess.User == nil || warning != "" {
		return "guest"
	}
	return "server"
}
