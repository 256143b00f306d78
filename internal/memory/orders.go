package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.OrderStore = (*Store)(nil)

// PlaceOrder checks every condition before mutating anything, so a conflict
// leaves the store untouched.
func (s *Store) PlaceOrder(ctx context.Context, order *domain.Order, decrements []domain.StockDecrement, cartVersion int64) error {
	const op = "order.place"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Unavailable(err, op, "order placement cancelled")
	}

	if order.PaymentIntentID != "" {
		for _, o := range s.orders {
			if o.PaymentIntentID == order.PaymentIntentID {
				return domain.PaymentAlreadyUsed(op)
			}
		}
	}

	var current int64
	cart, hasCart := s.carts[order.UserID]
	if hasCart {
		current = cart.Version
	}
	if current != cartVersion {
		return &domain.StockConflict{CartChanged: true}
	}

	type target struct {
		product *domain.Product
		index   int
		qty     int
	}
	targets := make([]target, 0, len(decrements))
	for _, d := range decrements {
		p, ok := s.products[d.ProductID]
		if !ok {
			return &domain.StockConflict{ProductID: d.ProductID, Size: d.Size}
		}
		idx := -1
		for i, opt := range p.Sizes {
			if opt.Label == d.Size {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &domain.StockConflict{ProductID: d.ProductID, Size: d.Size}
		}
		if stock := p.Sizes[idx].Stock; stock != nil && *stock < d.Quantity {
			return &domain.StockConflict{ProductID: d.ProductID, Size: d.Size}
		}
		targets = append(targets, target{product: p, index: idx, qty: d.Quantity})
	}

	now := s.now()
	for _, t := range targets {
		if stock := t.product.Sizes[t.index].Stock; stock != nil {
			next := *stock - t.qty
			t.product.Sizes[t.index].Stock = &next
			t.product.InStock = t.product.DeriveInStock()
			t.product.UpdatedAt = now
		}
	}

	if order.ID == "" {
		order.ID = newID()
	}
	order.CreatedAt, order.UpdatedAt = now, now
	s.orders[order.ID] = copyOrder(order)

	if hasCart {
		cart.Lines = nil
		cart.Version++
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.NotFound("order.get", "order", id)
	}
	return copyOrder(o), nil
}

func (s *Store) GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.PaymentIntentID == paymentIntentID {
			return copyOrder(o), nil
		}
	}
	return nil, domain.NotFound("order.get_by_payment", "order", paymentIntentID)
}

func (s *Store) ListUserOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	filter.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.Order
	for _, o := range s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		matched = append(matched, o)
	}
	sortNewestFirst(matched)

	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)

	out := make([]*domain.Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, copyOrder(o))
	}
	return out, total, nil
}

func (s *Store) OrderStats(ctx context.Context) (*domain.OrderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &domain.OrderStats{TotalOrders: len(s.orders), TotalRevenue: decimal.Zero}
	for _, o := range s.orders {
		if o.PaymentStatus == domain.PaymentStatusPaid {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		}
	}
	return stats, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, change domain.StatusChange) (*domain.Order, error) {
	const op = "order.update_status"

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[change.OrderID]
	if !ok {
		return nil, domain.NotFound(op, "order", change.OrderID)
	}
	if o.Status != change.From {
		return nil, domain.Conflict(op, "Order status was changed by someone else; reload and try again")
	}
	o.Status = change.To
	if change.TrackingNumber != "" {
		o.TrackingNumber = change.TrackingNumber
	}
	o.UpdatedAt = s.now()
	return copyOrder(o), nil
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.NotFound("order.update_payment", "order", id)
	}
	o.PaymentStatus = status
	o.IsPaid = status == domain.PaymentStatusPaid
	o.UpdatedAt = s.now()
	return copyOrder(o), nil
}

func sortNewestFirst(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
