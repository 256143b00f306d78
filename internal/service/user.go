package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/agrimart/internal/auth"
	"github.com/dukerupert/agrimart/internal/domain"
)

// UserService maps verified identity claims to local user records.
type UserService interface {
	// Resolve upserts the user keyed by the token subject, refreshing profile
	// fields and role from the claims.
	Resolve(ctx context.Context, claims *auth.Claims) (*domain.User, error)

	GetUser(ctx context.Context, id string) (*domain.User, error)

	// UpdateProfile sets the caller's names. Roles come only from the
	// identity provider.
	UpdateProfile(ctx context.Context, user *domain.User, firstName, lastName *string) (*domain.User, error)

	// List pages through every user, newest first.
	List(ctx context.Context, filter domain.UserFilter) (*UserPage, error)
}

// UserPage is one page of users.
type UserPage struct {
	Users []*domain.User `json:"users"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
	Pages int            `json:"pages"`
}

type userService struct {
	store   domain.UserStore
	timeout time.Duration
	logger  *slog.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(store domain.UserStore, timeout time.Duration, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{
		store:   store,
		timeout: timeout,
		logger:  logger.With("service", "user"),
	}
}

func (s *userService) Resolve(ctx context.Context, claims *auth.Claims) (*domain.User, error) {
	const op = "user.resolve"
	if claims == nil || claims.Subject == "" {
		return nil, domain.Unauthorized(op, "Invalid token")
	}

	u := &domain.User{
		ExternalID: claims.Subject,
		Email:      strings.ToLower(strings.TrimSpace(claims.Email)),
		FirstName:  strings.TrimSpace(claims.FirstName),
		LastName:   strings.TrimSpace(claims.LastName),
		Role:       domain.ParseRole(claims.Role),
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	if err := s.store.UpsertUser(ctx, u); err != nil {
		return nil, domain.StoreError(err, op, "failed to sync user")
	}
	return u, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, domain.StoreError(err, "user.get", "failed to load user")
	}
	return u, nil
}

func (s *userService) UpdateProfile(ctx context.Context, user *domain.User, firstName, lastName *string) (*domain.User, error) {
	const op = "user.update"

	first, last := user.FirstName, user.LastName
	if firstName != nil {
		first = strings.TrimSpace(*firstName)
		if first == "" {
			return nil, domain.NewValidationError(op, "firstName", "First name cannot be blank")
		}
	}
	if lastName != nil {
		last = strings.TrimSpace(*lastName)
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	u, err := s.store.UpdateUserProfile(ctx, user.ID, first, last)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to update user")
	}
	return u, nil
}

func (s *userService) List(ctx context.Context, filter domain.UserFilter) (*UserPage, error) {
	filter.Normalize()

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	users, total, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, domain.StoreError(err, "user.list", "failed to list users")
	}
	if users == nil {
		users = []*domain.User{}
	}
	return &UserPage{
		Users: users,
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
		Pages: (total + filter.Limit - 1) / filter.Limit,
	}, nil
}
