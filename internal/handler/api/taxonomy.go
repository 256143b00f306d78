package api

import (
	"net/http"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
	"github.com/dukerupert/agrimart/internal/service"
)

// TaxonomyHandler serves product categories and types.
type TaxonomyHandler struct {
	taxonomy service.TaxonomyService
}

// NewTaxonomyHandler creates a new taxonomy handler
func NewTaxonomyHandler(taxonomy service.TaxonomyService) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomy: taxonomy}
}

type taxonomyCreateRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Kind        string `json:"kind" validate:"required,oneof=category type"`
	Description string `json:"description" validate:"max=500"`
}

type taxonomyUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// List handles GET /category-types?kind=
func (h *TaxonomyHandler) List(w http.ResponseWriter, r *http.Request) {
	listing, err := h.taxonomy.List(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{
		"categories": listing.Categories,
		"types":      listing.Types,
		"all":        listing.All,
	})
}

// Create handles POST /category-types
func (h *TaxonomyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taxonomyCreateRequest
	if err := handler.Decode(w, r, "taxonomy.create", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	ct, err := h.taxonomy.Create(r.Context(), domain.MustUser(r.Context()), service.TaxonomyParams{
		Name:        req.Name,
		Kind:        req.Kind,
		Description: req.Description,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, handler.Envelope{"categoryType": ct})
}

// Update handles PUT /category-types/{id}
func (h *TaxonomyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req taxonomyUpdateRequest
	if err := handler.Decode(w, r, "taxonomy.update", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	ct, err := h.taxonomy.Update(r.Context(), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"categoryType": ct})
}

// Delete handles DELETE /category-types/{id}
func (h *TaxonomyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ct, err := h.taxonomy.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"message": ct.Kind.Label() + " deleted successfully"})
}
