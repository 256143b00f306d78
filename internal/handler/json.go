package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/agrimart/internal/domain"
)

// MaxJSONBody caps decoded request bodies.
const MaxJSONBody = 1 << 20

// Envelope is the payload of a successful response. JSON adds
// "success": true before writing it.
type Envelope map[string]any

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so the fields map matches the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, payload Envelope) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, status, body)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, payload Envelope) {
	JSON(w, http.StatusOK, payload)
}

// Decode reads a JSON body into dst and runs its validate tags. Failures come
// back as domain validation errors ready for ErrorResponse.
func Decode(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(op, err)
	}
	if dec.More() {
		return domain.Invalid(op, "Request body must contain a single JSON object")
	}
	return Validate(op, dst)
}

// Validate runs the validate tags on v.
func Validate(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Invalid(op, "Invalid request")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &domain.ValidationError{Op: op, Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func decodeError(op string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return domain.Invalid(op, "Request body must not be empty")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return domain.Invalid(op, "Request body contains malformed JSON")
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return domain.NewValidationError(op, typeErr.Field, typeErr.Field+" has the wrong type")
		}
		return domain.Invalid(op, "Request body contains a value of the wrong type")
	case errors.As(err, &maxErr):
		return domain.Errorf(domain.ETOOLARGE, op, "Request body must not be larger than %d bytes", maxErr.Limit)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return domain.NewValidationError(op, field, "Unknown field "+field)
	default:
		return domain.Invalid(op, "Invalid request body")
	}
}
