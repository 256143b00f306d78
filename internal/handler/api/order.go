package api

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
	"github.com/dukerupert/agrimart/internal/service"
)

// OrderHandler serves checkout and order routes. Every route sits behind
// RequireAuth; owner-only routes add RequireOwner.
type OrderHandler struct {
	checkout service.CheckoutService
	orders   service.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(checkout service.CheckoutService, orders service.OrderService) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders}
}

type createOrderRequest struct {
	AddressID       string `json:"addressId" validate:"required"`
	PaymentMethod   string `json:"paymentMethod"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type updateStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	TrackingNumber string `json:"trackingNumber" validate:"max=100"`
}

// Quote handles GET /checkout/quote?addressId=
func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.checkout.Quote(r.Context(), domain.MustUser(r.Context()), r.URL.Query().Get("addressId"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"quote": quote})
}

// Create handles POST /orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := handler.Decode(w, r, "order.create", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.checkout.CreateOrder(r.Context(), domain.MustUser(r.Context()), service.CreateOrderParams{
		AddressID:       req.AddressID,
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, handler.Envelope{"order": order})
}

// Mine handles GET /orders/my-orders
func (h *OrderHandler) Mine(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.GetUserOrders(r.Context(), domain.UserIDFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"orders": orders})
}

// Get handles GET /orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrderByID(r.Context(), domain.MustUser(r.Context()), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"order": order})
}

// List handles GET /orders?status=&paymentStatus=&page=&limit=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilter(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	page, err := h.orders.ListOrders(r.Context(), domain.MustUser(r.Context()), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{
		"orders": page.Orders,
		"pagination": handler.Envelope{
			"page":  page.Page,
			"limit": page.Limit,
			"total": page.Total,
			"pages": page.Pages,
		},
	})
}

// Dashboard handles GET /orders/dashboard/stats
func (h *OrderHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.orders.Dashboard(r.Context(), domain.MustUser(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"dashboard": dash})
}

// UpdateStatus handles PATCH /orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := handler.Decode(w, r, "order.status", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), domain.MustUser(r.Context()), service.UpdateOrderStatusParams{
		OrderID:        r.PathValue("id"),
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"order": order})
}

func orderFilter(r *http.Request) (domain.OrderFilter, error) {
	q := r.URL.Query()
	var filter domain.OrderFilter

	if s := q.Get("status"); s != "" {
		status, err := domain.ParseOrderStatus(s)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if s := q.Get("paymentStatus"); s != "" {
		status, err := domain.ParsePaymentStatus(s)
		if err != nil {
			return filter, err
		}
		filter.PaymentStatus = status
	}
	filter.Page = queryInt(q.Get("page"))
	filter.Limit = queryInt(q.Get("limit"))
	return filter, nil
}

// queryInt returns 0 for missing or malformed values; filters apply defaults.
func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
