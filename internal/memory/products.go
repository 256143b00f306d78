package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.ProductStore = (*Store)(nil)

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, domain.NotFound("product.get", "product", id)
	}
	return copyProduct(p), nil
}

func (s *Store) GetProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = copyProduct(p)
		}
	}
	return out, nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	filter.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []*domain.Product
	for _, p := range s.products {
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if filter.Type != "" && !strings.EqualFold(p.Type, filter.Type) {
			continue
		}
		if filter.Popular != nil && p.Popular != *filter.Popular {
			continue
		}
		if filter.InStock != nil && p.InStock != *filter.InStock {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)

	out := make([]*domain.Product, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, copyProduct(p))
	}
	return out, total, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = copyProduct(p)
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return domain.NotFound("product.update", "product", p.ID)
	}
	p.CreatedAt = existing.CreatedAt
	p.CreatedBy = existing.CreatedBy
	p.UpdatedAt = s.now()
	s.products[p.ID] = copyProduct(p)
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.NotFound("product.delete", "product", id)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) SetStock(ctx context.Context, id, size string, qty int) (*domain.Product, error) {
	const op = "product.set_stock"

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, domain.NotFound(op, "product", id)
	}
	for i := range p.Sizes {
		if p.Sizes[i].Label == size {
			q := qty
			p.Sizes[i].Stock = &q
			p.InStock = p.DeriveInStock()
			p.UpdatedAt = s.now()
			return copyProduct(p), nil
		}
	}
	return nil, domain.InvalidSize(op, p.Title, size)
}

func (s *Store) AddImage(ctx context.Context, id, url string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, domain.NotFound("product.add_image", "product", id)
	}
	p.Images = append(p.Images, url)
	p.UpdatedAt = s.now()
	return copyProduct(p), nil
}
