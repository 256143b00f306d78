package domain

import (
	"context"
	"time"
)

// =============================================================================
// ADDRESS DOMAIN TYPES
// =============================================================================

// Address is a shipping address owned by one user.
type Address struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	ZipCode   string    `json:"zipCode"`
	Country   string    `json:"country"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName joins first and last name.
func (a *Address) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// Snapshot copies the contact and location fields for embedding in an order.
func (a *Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Phone:     a.Phone,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		ZipCode:   a.ZipCode,
		Country:   a.Country,
	}
}

// AddressPatch carries a partial update. Empty strings leave fields unchanged;
// a nil IsDefault leaves the flag unchanged.
type AddressPatch struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Street    string
	City      string
	State     string
	ZipCode   string
	Country   string
	IsDefault *bool
}

// Apply overwrites the non-empty fields of a.
func (p AddressPatch) Apply(a *Address) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.FirstName, p.FirstName)
	set(&a.LastName, p.LastName)
	set(&a.Email, p.Email)
	set(&a.Phone, p.Phone)
	set(&a.Street, p.Street)
	set(&a.City, p.City)
	set(&a.State, p.State)
	set(&a.ZipCode, p.ZipCode)
	set(&a.Country, p.Country)
	if p.IsDefault != nil {
		a.IsDefault = *p.IsDefault
	}
}

// AddressStore persists address books. Every call is scoped by userID so an
// address owned by someone else behaves as absent.
type AddressStore interface {
	ListAddresses(ctx context.Context, userID string) ([]*Address, error)
	GetAddress(ctx context.Context, userID, id string) (*Address, error)

	// SaveAddress inserts (empty ID) or updates the address. When a.IsDefault
	// is true, every sibling's flag is cleared in the same transaction.
	SaveAddress(ctx context.Context, a *Address) error

	DeleteAddress(ctx context.Context, userID, id string) error
}
