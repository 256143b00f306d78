// Package memory implements every store contract in process memory. It backs
// STORE_DRIVER=memory and serves as the functional fake in service tests.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/jobs"
)

// Store holds all records behind one mutex, so multi-record operations such
// as PlaceOrder are atomic.
type Store struct {
	mu sync.Mutex

	products  map[string]*domain.Product
	carts     map[string]*domain.Cart
	addresses map[string]*domain.Address
	orders    map[string]*domain.Order
	users     map[string]*domain.User
	taxonomy  map[string]*domain.CategoryType
	jobs      map[string]*jobs.Job

	last time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		products:  make(map[string]*domain.Product),
		carts:     make(map[string]*domain.Cart),
		addresses: make(map[string]*domain.Address),
		orders:    make(map[string]*domain.Order),
		users:     make(map[string]*domain.User),
		taxonomy:  make(map[string]*domain.CategoryType),
		jobs:      make(map[string]*jobs.Job),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Ping always succeeds.
func (s *Store) Ping() error { return nil }

// now returns a strictly increasing timestamp so records created in the same
// clock tick still sort newest first. Callers hold s.mu.
func (s *Store) now() time.Time {
	t := time.Now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func newID() string {
	return uuid.NewString()
}

func copyProduct(p *domain.Product) *domain.Product {
	out := *p
	out.Images = append([]string(nil), p.Images...)
	out.Sizes = make(domain.SizeTable, len(p.Sizes))
	for i, opt := range p.Sizes {
		out.Sizes[i] = opt
		if opt.Stock != nil {
			qty := *opt.Stock
			out.Sizes[i].Stock = &qty
		}
	}
	return &out
}

func copyCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Lines = append([]domain.CartLine(nil), c.Lines...)
	return &out
}

func copyOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = append([]domain.OrderItem(nil), o.Items...)
	return &out
}

func copyAddress(a *domain.Address) *domain.Address {
	out := *a
	return &out
}

func copyUser(u *domain.User) *domain.User {
	out := *u
	return &out
}

func copyJob(j *jobs.Job) *jobs.Job {
	out := *j
	out.Payload = append([]byte(nil), j.Payload...)
	return &out
}
