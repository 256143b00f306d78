package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.CategoryTypeStore = (*Store)(nil)

func (s *Store) ListCategoryTypes(ctx context.Context, kind domain.TaxonomyKind) ([]*domain.CategoryType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.CategoryType, 0, len(s.taxonomy))
	for _, ct := range s.taxonomy {
		if kind == "" || ct.Kind == kind {
			c := *ct
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) GetCategoryType(ctx context.Context, id string) (*domain.CategoryType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ct, ok := s.taxonomy[id]
	if !ok {
		return nil, domain.NotFound("taxonomy.get", "category type", id)
	}
	c := *ct
	return &c, nil
}

func (s *Store) CreateCategoryType(ctx context.Context, ct *domain.CategoryType) error {
	const op = "taxonomy.create"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(ct.Kind, ct.Name, "") {
		return domain.DuplicateCategoryType(op, ct.Kind, ct.Name)
	}
	ct.ID = newID()
	ct.CreatedAt = s.now()
	ct.UpdatedAt = ct.CreatedAt
	c := *ct
	s.taxonomy[ct.ID] = &c
	return nil
}

func (s *Store) UpdateCategoryType(ctx context.Context, ct *domain.CategoryType) error {
	const op = "taxonomy.update"
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.taxonomy[ct.ID]
	if !ok {
		return domain.NotFound(op, "category type", ct.ID)
	}
	if s.nameTaken(existing.Kind, ct.Name, ct.ID) {
		return domain.DuplicateCategoryType(op, existing.Kind, ct.Name)
	}
	existing.Name = ct.Name
	existing.Description = ct.Description
	existing.UpdatedAt = s.now()
	*ct = *existing
	return nil
}

func (s *Store) DeleteCategoryType(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.taxonomy[id]; !ok {
		return domain.NotFound("taxonomy.delete", "category type", id)
	}
	delete(s.taxonomy, id)
	return nil
}

// nameTaken reports whether another entry of kind already uses name.
// Callers hold s.mu.
func (s *Store) nameTaken(kind domain.TaxonomyKind, name, exceptID string) bool {
	for id, ct := range s.taxonomy {
		if id != exceptID && ct.Kind == kind && strings.EqualFold(ct.Name, name) {
			return true
		}
	}
	return false
}
