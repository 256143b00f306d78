package tax

import "errors"

var (
	// ErrInvalidRate is returned when a rate falls outside [0, 1).
	ErrInvalidRate = errors.New("tax: rate must be between 0 and 1")

	// ErrNegativeSubtotal is returned for a subtotal below zero.
	ErrNegativeSubtotal = errors.New("tax: subtotal cannot be negative")
)
