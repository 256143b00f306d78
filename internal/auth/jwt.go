// Package auth verifies the bearer tokens issued by the identity provider.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingSubject is returned for a token without a sub claim.
	ErrMissingSubject = errors.New("auth: token has no subject")

	// ErrNoSecret is returned when verification is attempted without a key.
	ErrNoSecret = errors.New("auth: JWT secret is not configured")
)

// Claims are the identity fields the storefront reads from a token.
type Claims struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 bearer tokens.
type JWTVerifier struct {
	secret []byte
	iss    string
	aud    string
}

// NewJWTVerifier creates a verifier. Empty issuer or audience skips that check.
func NewJWTVerifier(secret, iss, aud string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), iss: iss, aud: aud}
}

// Verify parses and validates token, returning its claims.
func (v *JWTVerifier) Verify(token string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrNoSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.iss != "" {
		opts = append(opts, jwt.WithIssuer(v.iss))
	}
	if v.aud != "" {
		opts = append(opts, jwt.WithAudience(v.aud))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// Issue signs claims valid for ttl. Used by tests and local tooling; tokens
// in production come from the identity provider.
func (v *JWTVerifier) Issue(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if v.iss != "" && claims.Issuer == "" {
		claims.Issuer = v.iss
	}
	if v.aud != "" && len(claims.Audience) == 0 {
		claims.Audience = jwt.ClaimStrings{v.aud}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
