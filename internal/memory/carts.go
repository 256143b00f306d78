package memory

import (
	"context"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.CartRepository = (*Store)(nil)

// CartFor returns the server cart store bound to userID.
func (s *Store) CartFor(userID string) domain.CartStore {
	return &cartStore{s: s, userID: userID}
}

type cartStore struct {
	s      *Store
	userID string
}

// cart returns the live cart, creating it. Callers hold s.mu.
func (c *cartStore) cart() *domain.Cart {
	cart, ok := c.s.carts[c.userID]
	if !ok {
		cart = &domain.Cart{UserID: c.userID}
		c.s.carts[c.userID] = cart
	}
	return cart
}

func (c *cartStore) Cart(ctx context.Context) (*domain.Cart, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if cart, ok := c.s.carts[c.userID]; ok {
		return copyCart(cart), nil
	}
	return &domain.Cart{UserID: c.userID}, nil
}

func (c *cartStore) AddLine(ctx context.Context, productID, size string, quantity int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	cart := c.cart()
	if err := cart.Add(productID, size, quantity); err != nil {
		return err
	}
	cart.Version++
	return nil
}

func (c *cartStore) SetLine(ctx context.Context, productID, size string, quantity int) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	cart, ok := c.s.carts[c.userID]
	if !ok || !cart.Set(productID, size, quantity) {
		return false, nil
	}
	cart.Version++
	return true, nil
}

func (c *cartStore) RemoveLine(ctx context.Context, productID, size string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if cart, ok := c.s.carts[c.userID]; ok && cart.Find(productID, size) >= 0 {
		cart.Remove(productID, size)
		cart.Version++
	}
	return nil
}

func (c *cartStore) Clear(ctx context.Context) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if cart, ok := c.s.carts[c.userID]; ok {
		cart.Lines = nil
		cart.Version++
	}
	return nil
}
