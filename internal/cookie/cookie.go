// Package cookie writes the storefront's cookies and holds the guest cart,
// which lives entirely in an encrypted cookie on the shopper's device.
package cookie

import (
	"net/http"
)

// Config holds cookie attributes shared by every cookie the server sets.
type Config struct {
	// Domain scopes cookies; empty means host-only.
	Domain string

	// Secure determines whether cookies require HTTPS.
	// Should be true in production, false in development.
	Secure bool
}

// NewConfig creates a new cookie configuration.
func NewConfig(domain string, secure bool) *Config {
	return &Config{
		Domain: domain,
		Secure: secure,
	}
}

// Set writes an HttpOnly, SameSite=Lax cookie on path "/".
func (c *Config) Set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear removes a cookie by setting MaxAge to -1.
func (c *Config) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get retrieves a cookie value from the request.
// Returns empty string if cookie not found.
func Get(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

const (
	// CartCookieName stores the encrypted guest cart.
	CartCookieName = "agrimart_cart"

	// CartMaxAge keeps a guest cart for 30 days.
	CartMaxAge = 30 * 24 * 60 * 60
)
