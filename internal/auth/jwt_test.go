package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("test-secret", "agrimart-idp", "agrimart")

	token, err := v.Issue(Claims{
		Email:            "farmer@example.com",
		Role:             "owner",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_2abc"},
	}, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_2abc", claims.Subject)
	assert.Equal(t, "farmer@example.com", claims.Email)
	assert.Equal(t, "owner", claims.Role)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("test-secret", "", "")

	expired, err := v.Issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}, -time.Hour)
	require.NoError(t, err)

	other, err := NewJWTVerifier("other-secret", "", "").Issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}, time.Hour)
	require.NoError(t, err)

	noSub, err := v.Issue(Claims{}, time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", other},
		{"no subject", noSub},
		{"no expiry", noExp},
		{"wrong algorithm", hs512},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestJWTVerifier_IssuerAudience(t *testing.T) {
	v := NewJWTVerifier("s", "idp", "shop")
	token, err := NewJWTVerifier("s", "other-idp", "shop").Issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, errors.Is(err, jwt.ErrTokenInvalidIssuer))
}

func TestJWTVerifier_NoSecret(t *testing.T) {
	_, err := NewJWTVerifier("", "", "").Verify("x")
	assert.ErrorIs(t, err, ErrNoSecret)
}
