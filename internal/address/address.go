// Package address validates shipping addresses before they enter an address book.
package address

import "context"

// Validator defines the interface for address validation.
// Implementations can call external APIs; BasicValidator checks format only.
type Validator interface {
	// Validate checks that an address is complete and well formed.
	// Even if IsValid is false, NormalizedAddress holds the trimmed input.
	Validate(ctx context.Context, addr Address) (*ValidationResult, error)
}

// Address represents a shipping address.
type Address struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Email     string `validate:"required,email"`
	Phone     string `validate:"required,min=5,max=20"`
	Street    string `validate:"required"`
	City      string `validate:"required"`
	State     string `validate:"required"`
	ZipCode   string `validate:"required,max=12"`
	Country   string `validate:"required"`
}

// ValidationResult contains the outcome of address validation.
type ValidationResult struct {
	IsValid           bool
	NormalizedAddress *Address
	Errors            []ValidationError
}

// ValidationError represents a specific validation error.
type ValidationError struct {
	Field   string
	Message string
}
