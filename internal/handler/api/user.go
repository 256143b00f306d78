package api

import (
	"net/http"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
	"github.com/dukerupert/agrimart/internal/service"
)

// UserHandler serves the caller's profile and the owner's user list.
type UserHandler struct {
	users service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type profileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
}

// Me handles GET /users/me. Authenticate has already synced the profile
// from the token.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	handler.OK(w, handler.Envelope{"user": domain.MustUser(r.Context())})
}

// Update handles PUT /users/update
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := handler.Decode(w, r, "user.update", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), domain.MustUser(r.Context()), req.FirstName, req.LastName)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"user": u})
}

// List handles GET /users/all
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.users.List(r.Context(), domain.UserFilter{
		Page:  queryInt(q.Get("page")),
		Limit: queryInt(q.Get("limit")),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{
		"users": page.Users,
		"pagination": handler.Envelope{
			"page":  page.Page,
			"limit": page.Limit,
			"total": page.Total,
			"pages": page.Pages,
		},
	})
}
