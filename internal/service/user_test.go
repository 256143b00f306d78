package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/auth"
	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/memory"
)

func TestUserService_Resolve(t *testing.T) {
	store := memory.New()
	svc := NewUserService(store, time.Second, nil)
	ctx := context.Background()

	claims := &auth.Claims{
		Email:            " Farmer@Example.com ",
		FirstName:        "Meera",
		Role:             "superuser",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "idp|42"},
	}
	first, err := svc.Resolve(ctx, claims)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "farmer@example.com", first.Email)
	assert.Equal(t, domain.RoleUser, first.Role, "unknown roles fall back to user")

	claims.Role = "owner"
	claims.LastName = "Iyer"
	second, err := svc.Resolve(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.RoleOwner, second.Role)

	stored, err := svc.GetUser(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meera Iyer", stored.FullName())

	_, err = svc.Resolve(ctx, &auth.Claims{})
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestUserService_UpdateProfile(t *testing.T) {
	store := memory.New()
	svc := NewUserService(store, time.Second, nil)
	ctx := context.Background()

	claims := &auth.Claims{
		Email:            "farmer@example.com",
		FirstName:        "Meera",
		LastName:         "Iyer",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "idp|42"},
	}
	u, err := svc.Resolve(ctx, claims)
	require.NoError(t, err)

	first := " Mira "
	updated, err := svc.UpdateProfile(ctx, u, &first, nil)
	require.NoError(t, err)
	assert.Equal(t, "Mira Iyer", updated.FullName())

	// Signing in again keeps the edited name.
	again, err := svc.Resolve(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, "Mira", again.FirstName)

	blank := ""
	_, err = svc.UpdateProfile(ctx, u, &blank, nil)
	assert.Contains(t, domain.GetValidationFields(err), "firstName")

	_, err = svc.UpdateProfile(ctx, &domain.User{ID: "missing"}, &first, nil)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestUserService_List(t *testing.T) {
	store := memory.New()
	svc := NewUserService(store, time.Second, nil)
	ctx := context.Background()

	for _, sub := range []string{"a", "b", "c"} {
		_, err := svc.Resolve(ctx, &auth.Claims{Email: sub + "@example.com", RegisteredClaims: jwt.RegisteredClaims{Subject: sub}})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, domain.UserFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Users, 1)

	page, err = svc.List(ctx, domain.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Users, 3)
}
