package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fieldNames maps struct fields to their JSON names.
var fieldNames = map[string]string{
	"FirstName": "firstName",
	"LastName":  "lastName",
	"Email":     "email",
	"Phone":     "phone",
	"Street":    "street",
	"City":      "city",
	"State":     "state",
	"ZipCode":   "zipCode",
	"Country":   "country",
}

// BasicValidator performs format validation without external API calls.
type BasicValidator struct {
	validate *validator.Validate
}

// NewBasicValidator creates a new basic address validator.
func NewBasicValidator() *BasicValidator {
	return &BasicValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate trims every field, upper-cases two-letter country codes, and
// checks required fields and email format.
func (v *BasicValidator) Validate(ctx context.Context, addr Address) (*ValidationResult, error) {
	n := Normalize(addr)
	result := &ValidationResult{IsValid: true, NormalizedAddress: &n}

	err := v.validate.StructCtx(ctx, n)
	if err == nil {
		return result, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("address: validate: %w", err)
	}

	result.IsValid = false
	for _, fe := range verrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fieldNames[fe.Field()],
			Message: message(fe),
		})
	}
	return result, nil
}

// Normalize trims whitespace and upper-cases two-letter country codes.
func Normalize(a Address) Address {
	trim := strings.TrimSpace
	n := Address{
		FirstName: trim(a.FirstName),
		LastName:  trim(a.LastName),
		Email:     strings.ToLower(trim(a.Email)),
		Phone:     trim(a.Phone),
		Street:    trim(a.Street),
		City:      trim(a.City),
		State:     trim(a.State),
		ZipCode:   trim(a.ZipCode),
		Country:   trim(a.Country),
	}
	if len(n.Country) == 2 {
		n.Country = strings.ToUpper(n.Country)
	}
	return n
}

func message(fe validator.FieldError) string {
	name := fieldNames[fe.Field()]
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return "Please provide a valid email"
	case "min", "max":
		return name + " has an invalid length"
	default:
		return name + " is invalid"
	}
}
