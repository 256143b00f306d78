package api

import (
	"net/http"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
	"github.com/dukerupert/agrimart/internal/service"
)

// PaymentHandler serves /payment. Intents are priced from the caller's cart.
type PaymentHandler struct {
	payments service.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createIntentRequest struct {
	AddressID string `json:"addressId" validate:"required"`
}

type confirmRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

// CreateIntent handles POST /payment/create-intent
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := handler.Decode(w, r, "payment.create_intent", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	view, err := h.payments.CreateIntent(r.Context(), domain.MustUser(r.Context()), req.AddressID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, intentEnvelope(view))
}

// Confirm handles POST /payment/confirm
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := handler.Decode(w, r, "payment.confirm", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	view, err := h.payments.Confirm(r.Context(), domain.MustUser(r.Context()), req.PaymentIntentID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"paymentIntent": view})
}

// Status handles GET /payment/status/{paymentIntentId}
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.payments.Status(r.Context(), domain.MustUser(r.Context()), r.PathValue("paymentIntentId"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, intentEnvelope(view))
}

func intentEnvelope(v *service.PaymentIntentView) handler.Envelope {
	env := handler.Envelope{
		"paymentIntentId": v.PaymentIntentID,
		"status":          v.Status,
		"amount":          v.AmountCents,
		"currency":        v.Currency,
		"succeeded":       v.Succeeded,
	}
	if v.ClientSecret != "" {
		env["clientSecret"] = v.ClientSecret
	}
	return env
}
