// Package api implements the storefront's JSON endpoints on top of the
// service layer.
package api

import (
	"net/http"

	"github.com/dukerupert/agrimart/internal/cookie"
	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
	"github.com/dukerupert/agrimart/internal/service"
)

// CartHandler serves /cart for guests and signed-in users alike.
type CartHandler struct {
	carts service.CartService
	codec *cookie.CartCodec
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts service.CartService, codec *cookie.CartCodec) *CartHandler {
	return &CartHandler{carts: carts, codec: codec}
}

// session binds the caller and this request's guest cookie.
func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) service.CartSession {
	return service.CartSession{
		User:  domain.UserFromContext(r.Context()),
		Guest: cookie.NewGuestCart(h.codec, w, r),
	}
}

type cartLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"omitempty,min=0,max=999"`
}

// View handles GET /cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.View(r.Context(), h.session(w, r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"cart": view})
}

// Count handles GET /cart/count
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.carts.Count(r.Context(), h.session(w, r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"count": n})
}

// Add handles POST /cart/add. Quantity defaults to 1.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req cartLineRequest
	if err := handler.Decode(w, r, "cart.add", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	view, err := h.carts.Add(r.Context(), h.session(w, r), req.ProductID, req.Size, quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"cart": view})
}

// Update handles PUT /cart/update
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req cartLineRequest
	if err := handler.Decode(w, r, "cart.update", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if req.Quantity == nil {
		handler.ErrorResponse(w, r, domain.NewValidationError("cart.update", "quantity", "quantity is required"))
		return
	}

	view, err := h.carts.UpdateQuantity(r.Context(), h.session(w, r), req.ProductID, req.Size, *req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"cart": view})
}

// Remove handles DELETE /cart/remove/{productId}/{size}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Remove(r.Context(), h.session(w, r), r.PathValue("productId"), r.PathValue("size"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"cart": view})
}

// Clear handles DELETE /cart/clear
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Clear(r.Context(), h.session(w, r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"cart": view})
}

// Sync handles POST /cart/sync, called once right after sign-in.
func (h *CartHandler) Sync(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Reconcile(r.Context(), h.session(w, r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"cart": view})
}
