// Package domain provides core business types, store contracts and context
// helpers for the agri-mart storefront.
//
// Context helpers centralize request-scoped data access so handlers and
// services agree on who the caller is.
package domain

import (
	"context"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// userContextKey stores the resolved user in context.
	userContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// --- User Context Helpers ---

// NewContextWithUser returns a new context with the user attached.
func NewContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the user from context.
// Returns nil for guests.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}

// UserIDFromContext retrieves the user ID from context.
// Returns "" for guests.
func UserIDFromContext(ctx context.Context) string {
	if user := UserFromContext(ctx); user != nil {
		return user.ID
	}
	return ""
}

// MustUser retrieves the user from context, panicking if not present.
// Only call behind RequireAuth.
func MustUser(ctx context.Context) *User {
	user := UserFromContext(ctx)
	if user == nil {
		panic("user required in context but not found")
	}
	return user
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

// --- Convenience Helpers ---

// IsAuthenticated returns true if there is a user in context.
func IsAuthenticated(ctx context.Context) bool {
	return UserFromContext(ctx) != nil
}

// IsOwner returns true if the user in context may manage the store.
func IsOwner(ctx context.Context) bool {
	user := UserFromContext(ctx)
	return user != nil && user.IsOwner()
}
