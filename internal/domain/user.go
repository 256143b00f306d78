package domain

import (
	"context"
	"time"
)

// =============================================================================
// USER DOMAIN TYPES
// =============================================================================

// Role controls access to owner-only operations.
type Role string

const (
	RoleUser  Role = "user"
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

// ParseRole maps unknown or empty roles to RoleUser.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleOwner, RoleAdmin:
		return Role(s)
	default:
		return RoleUser
	}
}

// User is the local record of an identity resolved from a bearer token.
// ExternalID is the identity provider's stable subject.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsOwner reports whether the user holds the owner or admin role.
func (u *User) IsOwner() bool {
	return u.Role == RoleOwner || u.Role == RoleAdmin
}

// FullName joins first and last name, falling back to the email address.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// UserStore persists users.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)

	// UpsertUser inserts or refreshes the user keyed by ExternalID and fills
	// in the stored record. Email and role always follow u; names from u only
	// fill names that are still blank, so profile edits survive sign-in.
	UpsertUser(ctx context.Context, u *User) error

	// UpdateUserProfile overwrites the user's names.
	UpdateUserProfile(ctx context.Context, id, firstName, lastName string) (*User, error)

	// ListUsers returns one page of users, newest first, with the total.
	ListUsers(ctx context.Context, filter UserFilter) ([]*User, int, error)
}

// UserFilter pages ListUsers.
type UserFilter struct {
	Page  int
	Limit int
}

// Normalize applies paging defaults.
func (f *UserFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 50
	}
}

// Offset returns the number of rows to skip.
func (f UserFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
