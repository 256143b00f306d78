package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/agrimart/internal/domain"
)

// TaxonomyService manages the owner-defined product categories and types.
// Listing is public; writes are owner-only, checked by the caller.
type TaxonomyService interface {
	List(ctx context.Context, kind string) (*TaxonomyListing, error)
	Create(ctx context.Context, owner *domain.User, params TaxonomyParams) (*domain.CategoryType, error)

	// Update renames or re-describes an entry. Nil fields are left alone.
	// Renaming an entry that products still use is refused.
	Update(ctx context.Context, id string, name, description *string) (*domain.CategoryType, error)

	// Delete removes an entry no product uses.
	Delete(ctx context.Context, id string) (*domain.CategoryType, error)
}

// TaxonomyParams describes a new entry.
type TaxonomyParams struct {
	Name        string
	Kind        string
	Description string
}

// TaxonomyListing splits the entries by kind.
type TaxonomyListing struct {
	Categories []*domain.CategoryType `json:"categories"`
	Types      []*domain.CategoryType `json:"types"`
	All        []*domain.CategoryType `json:"all"`
}

type taxonomyService struct {
	store    domain.CategoryTypeStore
	products domain.ProductStore
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTaxonomyService creates a new TaxonomyService instance.
func NewTaxonomyService(store domain.CategoryTypeStore, products domain.ProductStore, timeout time.Duration, logger *slog.Logger) TaxonomyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &taxonomyService{
		store:    store,
		products: products,
		timeout:  timeout,
		logger:   logger.With("service", "taxonomy"),
	}
}

func (s *taxonomyService) List(ctx context.Context, kind string) (*TaxonomyListing, error) {
	const op = "taxonomy.list"
	k, err := domain.ParseTaxonomyKind(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	all, err := s.store.ListCategoryTypes(ctx, k)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to list categories and types")
	}
	out := &TaxonomyListing{
		Categories: []*domain.CategoryType{},
		Types:      []*domain.CategoryType{},
		All:        all,
	}
	for _, ct := range all {
		if ct.Kind == domain.KindCategory {
			out.Categories = append(out.Categories, ct)
		} else {
			out.Types = append(out.Types, ct)
		}
	}
	return out, nil
}

func (s *taxonomyService) Create(ctx context.Context, owner *domain.User, params TaxonomyParams) (*domain.CategoryType, error) {
	const op = "taxonomy.create"

	name := strings.TrimSpace(params.Name)
	fields := make(map[string]string)
	if name == "" {
		fields["name"] = "Name is required"
	}
	kind, err := domain.ParseTaxonomyKind(params.Kind)
	if err != nil || kind == "" {
		fields["kind"] = `Kind must be either "category" or "type"`
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Op: op, Fields: fields}
	}

	ct := &domain.CategoryType{
		Name:        name,
		Kind:        kind,
		Description: strings.TrimSpace(params.Description),
	}
	if owner != nil {
		ct.CreatedBy = owner.ID
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	if err := s.store.CreateCategoryType(ctx, ct); err != nil {
		return nil, domain.StoreError(err, op, "failed to create category type")
	}
	s.logger.Info("taxonomy entry created", "id", ct.ID, "kind", ct.Kind, "name", ct.Name)
	return ct, nil
}

func (s *taxonomyService) Update(ctx context.Context, id string, name, description *string) (*domain.CategoryType, error) {
	const op = "taxonomy.update"

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	ct, err := s.store.GetCategoryType(ctx, id)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to load category type")
	}

	if name != nil {
		next := strings.TrimSpace(*name)
		if next == "" {
			return nil, domain.NewValidationError(op, "name", "Name cannot be blank")
		}
		if next != ct.Name {
			if !strings.EqualFold(next, ct.Name) {
				if err := s.ensureUnused(ctx, op, ct); err != nil {
					return nil, err
				}
			}
			ct.Name = next
		}
	}
	if description != nil {
		ct.Description = strings.TrimSpace(*description)
	}

	if err := s.store.UpdateCategoryType(ctx, ct); err != nil {
		return nil, domain.StoreError(err, op, "failed to update category type")
	}
	return ct, nil
}

func (s *taxonomyService) Delete(ctx context.Context, id string) (*domain.CategoryType, error) {
	const op = "taxonomy.delete"

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	ct, err := s.store.GetCategoryType(ctx, id)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to load category type")
	}
	if err := s.ensureUnused(ctx, op, ct); err != nil {
		return nil, err
	}
	if err := s.store.DeleteCategoryType(ctx, id); err != nil {
		return nil, domain.StoreError(err, op, "failed to delete category type")
	}
	s.logger.Info("taxonomy entry deleted", "id", ct.ID, "kind", ct.Kind, "name", ct.Name)
	return ct, nil
}

// ensureUnused fails with ECONFLICT while any product carries ct's name.
func (s *taxonomyService) ensureUnused(ctx context.Context, op string, ct *domain.CategoryType) error {
	filter := domain.ProductFilter{Page: 1, Limit: 1}
	if ct.Kind == domain.KindType {
		filter.Type = ct.Name
	} else {
		filter.Category = ct.Name
	}
	_, n, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return domain.StoreError(err, op, "failed to count products")
	}
	if n > 0 {
		return &domain.Error{
			Code:    domain.ECONFLICT,
			Reason:  domain.ReasonInUse,
			Op:      op,
			Message: fmt.Sprintf("Cannot change %s %q: %d product(s) are using it", ct.Kind, ct.Name, n),
		}
	}
	return nil
}

// resolveTaxonomy checks a product's category or type against the entries of
// kind and returns the stored spelling. With no entries of that kind any
// value is accepted.
func resolveTaxonomy(ctx context.Context, store domain.CategoryTypeStore, op string, kind domain.TaxonomyKind, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || store == nil {
		return value, nil
	}
	entries, err := store.ListCategoryTypes(ctx, kind)
	if err != nil {
		return "", domain.StoreError(err, op, "failed to load categories and types")
	}
	if len(entries) == 0 {
		return value, nil
	}
	for _, ct := range entries {
		if strings.EqualFold(ct.Name, value) {
			return ct.Name, nil
		}
	}
	return "", domain.NewValidationError(op, string(kind), "Unknown "+string(kind)+" "+value)
}
