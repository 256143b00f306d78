package email

import (
	"fmt"

	"github.com/dukerupert/agrimart/internal/domain"
)

var (
	// ErrNoRecipients is returned for a message without a To address.
	ErrNoRecipients = &domain.Error{Code: domain.EINVALID, Op: "email.send", Message: "Email has no recipients"}

	// ErrInvalidFromAddress is returned when the from address is invalid.
	ErrInvalidFromAddress = &domain.Error{Code: domain.EINVALID, Op: "email.send", Message: "Invalid from email address"}

	// ErrInvalidToAddress is returned when the to address is invalid.
	ErrInvalidToAddress = &domain.Error{Code: domain.EINVALID, Op: "email.send", Message: "Invalid to email address"}
)

// ErrTemplateNotFound creates a template not found error.
func ErrTemplateNotFound(name string) error {
	return &domain.Error{
		Code:    domain.ENOTFOUND,
		Op:      "email.render",
		Message: fmt.Sprintf("Email template %s not found", name),
	}
}
