package domain

import (
	"context"
	"strings"
	"time"
)

// =============================================================================
// CATALOG TAXONOMY
// =============================================================================

// TaxonomyKind says which product attribute a taxonomy entry names.
type TaxonomyKind string

const (
	KindCategory TaxonomyKind = "category"
	KindType     TaxonomyKind = "type"
)

// ParseTaxonomyKind accepts "category" or "type". Blank means any kind and
// is only valid as a list filter.
func ParseTaxonomyKind(s string) (TaxonomyKind, error) {
	switch k := TaxonomyKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindCategory, KindType:
		return k, nil
	}
	return "", NewValidationError("taxonomy.kind", "kind", `Kind must be either "category" or "type"`)
}

// Label is the capitalised kind used in messages.
func (k TaxonomyKind) Label() string {
	if k == KindType {
		return "Type"
	}
	return "Category"
}

// CategoryType is an owner-managed product category or type. Names are
// unique per kind, compared case-insensitively.
type CategoryType struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Kind        TaxonomyKind `json:"kind"`
	Description string       `json:"description"`
	CreatedBy   string       `json:"createdBy,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// DuplicateCategoryType reports a name already taken within its kind.
func DuplicateCategoryType(op string, kind TaxonomyKind, name string) error {
	return &Error{
		Code:    ECONFLICT,
		Reason:  ReasonDuplicateName,
		Op:      op,
		Message: kind.Label() + ` "` + name + `" already exists`,
	}
}

// CategoryTypeStore persists the taxonomy.
type CategoryTypeStore interface {
	// ListCategoryTypes returns entries of kind (all kinds when blank),
	// sorted by name.
	ListCategoryTypes(ctx context.Context, kind TaxonomyKind) ([]*CategoryType, error)

	GetCategoryType(ctx context.Context, id string) (*CategoryType, error)

	// CreateCategoryType fills in ID and timestamps. A duplicate name within
	// the kind returns DuplicateCategoryType.
	CreateCategoryType(ctx context.Context, ct *CategoryType) error

	// UpdateCategoryType saves Name and Description.
	UpdateCategoryType(ctx context.Context, ct *CategoryType) error

	DeleteCategoryType(ctx context.Context, id string) error
}
