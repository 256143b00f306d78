package api

import (
	"net/http"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
	"github.com/dukerupert/agrimart/internal/service"
)

// AddressHandler serves the signed-in user's address book.
type AddressHandler struct {
	addresses service.AddressService
}

// NewAddressHandler creates a new address handler
func NewAddressHandler(addresses service.AddressService) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

// addressRequest bounds field sizes; required fields and formats are
// checked by the address validator in the service.
type addressRequest struct {
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"max=254"`
	Phone     string `json:"phone" validate:"max=40"`
	Street    string `json:"street" validate:"max=200"`
	City      string `json:"city" validate:"max=100"`
	State     string `json:"state" validate:"max=100"`
	ZipCode   string `json:"zipCode" validate:"max=20"`
	Country   string `json:"country" validate:"max=100"`
	IsDefault *bool  `json:"isDefault"`
}

// List handles GET /address
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.addresses.List(r.Context(), domain.UserIDFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"addresses": list})
}

// Get handles GET /address/{id}
func (h *AddressHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.addresses.Get(r.Context(), domain.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"address": a})
}

// Add handles POST /address
func (h *AddressHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := handler.Decode(w, r, "address.add", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	a, err := h.addresses.Add(r.Context(), domain.UserIDFromContext(r.Context()), service.AddressParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Street:    req.Street,
		City:      req.City,
		State:     req.State,
		ZipCode:   req.ZipCode,
		Country:   req.Country,
		IsDefault: req.IsDefault != nil && *req.IsDefault,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, handler.Envelope{"address": a})
}

// Update handles PUT /address/{id}. Omitted or empty fields keep their value.
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := handler.Decode(w, r, "address.update", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	a, err := h.addresses.Update(r.Context(), domain.UserIDFromContext(r.Context()), r.PathValue("id"), domain.AddressPatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Street:    req.Street,
		City:      req.City,
		State:     req.State,
		ZipCode:   req.ZipCode,
		Country:   req.Country,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"address": a})
}

// Delete handles DELETE /address/{id}
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.addresses.Delete(r.Context(), domain.UserIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"message": "Address deleted successfully"})
}

// SetDefault handles PATCH /address/{id}/set-default
func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	a, err := h.addresses.SetDefault(r.Context(), domain.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"address": a})
}
