package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Application error codes.
// These map to HTTP status codes and determine user-facing messages.
const (
	ECONFLICT     = "conflict"         // 409 - Stock, size or default-address conflicts
	EINTERNAL     = "internal"         // 500 - Internal server error (hide details)
	EINVALID      = "invalid"          // 400 - Validation error (bad input)
	ENOTFOUND     = "not_found"        // 404 - Resource not found
	EUNAUTHORIZED = "unauthorized"     // 401 - Authentication required
	EFORBIDDEN    = "forbidden"        // 403 - Authenticated but not permitted
	ENOTIMPL      = "not_implemented"  // 501 - Feature not implemented
	ERATELIMIT    = "rate_limit"       // 429 - Too many requests
	EPAYMENT      = "payment_required" // 402 - Payment failed or required
	EGONE         = "gone"             // 410 - Resource permanently deleted
	ETOOLARGE     = "too_large"        // 413 - Request body or upload too large
	EUNAVAILABLE  = "unavailable"      // 503 - Downstream collaborator timed out or failed
)

// Reasons refine a code for callers that branch on a specific failure.
const (
	ReasonOutOfStock          = "out_of_stock"
	ReasonInsufficientStock   = "insufficient_stock"
	ReasonInvalidSize         = "invalid_size"
	ReasonEmptyCart           = "empty_cart"
	ReasonAddressNotFound     = "address_not_found"
	ReasonNotFoundInCart      = "not_found_in_cart"
	ReasonStockConflict       = "stock_conflict"
	ReasonPaymentNotCompleted = "payment_not_completed"
	ReasonIllegalTransition   = "illegal_transition"
	ReasonPaymentAlreadyUsed  = "payment_already_used"
	ReasonDefaultAddressRace  = "default_address_race"
	ReasonDuplicateName       = "duplicate_name"
	ReasonInUse               = "in_use"
)

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g., EINVALID, ENOTFOUND).
	Code string

	// Reason optionally narrows Code (e.g., ReasonInsufficientStock).
	Reason string

	// Message is a human-readable error message safe to show to users.
	Message string

	// Op is the operation where the error occurred (e.g., "order.create").
	// Used for debugging and logging, not shown to users.
	Op string

	// Err is the underlying error, if any. Used for error wrapping.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors, and EUNAVAILABLE for
// context deadline or cancellation errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return EUNAVAILABLE
	}

	return EINTERNAL
}

// ErrorReason extracts the reason from an error, or "" if none was set.
func ErrorReason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// ErrorMessage extracts a user-facing message from an error.
// For internal errors, returns a generic message to avoid leaking details.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		// For internal errors, hide details from users
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message()
	}

	if ErrorCode(err) == EUNAVAILABLE {
		return "The service is temporarily unavailable. Please try again."
	}

	// Unknown error type - hide details
	return "An internal error occurred. Please try again later."
}

// ErrorOp extracts the operation from an error (for logging).
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}

	return ""
}

// Errorf creates a new domain error with formatted message.
// Example: domain.Errorf(domain.EINVALID, "cart.add", "quantity must be at least %d", 1)
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with a domain error code and operation.
// Preserves the underlying error for logging while providing structure.
// Returns nil if err is nil.
// Example: domain.WrapError(err, domain.EINTERNAL, "product.create", "failed to save product")
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// IsReason returns true if err carries the given reason.
func IsReason(err error, reason string) bool {
	return ErrorReason(err) == reason
}

// =============================================================================
// Validation Errors (field-level errors for request bodies)
// =============================================================================

// ValidationError represents one or more field validation failures.
type ValidationError struct {
	// Fields maps field names to error messages.
	Fields map[string]string

	// Op is the operation where validation failed.
	Op string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			if e.Op != "" {
				return fmt.Sprintf("%s: %s: %s", e.Op, field, msg)
			}
			return fmt.Sprintf("%s: %s", field, msg)
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: validation failed for %d fields", e.Op, len(e.Fields))
	}
	return fmt.Sprintf("validation failed for %d fields", len(e.Fields))
}

// Message returns the user-facing text: the single field's message, or a
// summary listing the failing fields in name order.
func (e *ValidationError) Message() string {
	if len(e.Fields) == 1 {
		for _, msg := range e.Fields {
			return msg
		}
	}
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	return "Invalid fields: " + strings.Join(names, ", ")
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{
		Op:     op,
		Fields: map[string]string{field: message},
	}
}

// AddFieldError adds a field error to an existing ValidationError.
// If err is nil, creates a new ValidationError.
// If err is not a ValidationError, creates a new one with the field.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if err != nil && errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}

	return &ValidationError{
		Fields: map[string]string{field: message},
	}
}

// IsValidationError returns true if err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationFields extracts field errors from a ValidationError.
// Returns nil if err is not a ValidationError.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// =============================================================================
// Common errors (convenience)
// =============================================================================

// NotFound creates a not found error for a resource.
// Example: domain.NotFound("product.get", "product", productID)
func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

// Unauthorized creates an unauthorized error.
// Example: domain.Unauthorized("auth.verify", "token expired")
func Unauthorized(op, message string) error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a forbidden error.
// Example: domain.Forbidden("order.get", "not authorized to view this order")
func Forbidden(op, message string) error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Invalid creates a validation error for a single issue.
// Example: domain.Invalid("cart.add", "size is required")
func Invalid(op, message string) error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
// Example: domain.Conflict("address.save", "another default address was set concurrently")
func Conflict(op, message string) error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error (wraps underlying error).
// The message shown to users will be generic; the underlying error is for logging.
// Example: domain.Internal(err, "order.create", "failed to save order")
func Internal(err error, op, message string) error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Unavailable wraps a collaborator failure or timeout as a retryable error.
// Example: domain.Unavailable(err, "catalog.get", "catalog store did not respond")
func Unavailable(err error, op, message string) error {
	return &Error{
		Code:    EUNAVAILABLE,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// StoreError classifies an error returned by a store or collaborator.
// Domain and validation errors pass through untouched, context expiry
// becomes EUNAVAILABLE, anything else becomes EINTERNAL.
func StoreError(err error, op, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	var ve *ValidationError
	if errors.As(err, &e) || errors.As(err, &ve) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unavailable(err, op, message)
	}
	return Internal(err, op, message)
}

// =============================================================================
// Catalog and checkout failures
// =============================================================================

// OutOfStock reports a product whose availability flag is false.
func OutOfStock(op, title string) error {
	return &Error{
		Code:    ECONFLICT,
		Reason:  ReasonOutOfStock,
		Op:      op,
		Message: fmt.Sprintf("Product %s is out of stock", title),
	}
}

// InsufficientStock reports a size whose stock figure is below the requested quantity.
func InsufficientStock(op, title, size string, available, requested int) error {
	return &Error{
		Code:    ECONFLICT,
		Reason:  ReasonInsufficientStock,
		Op:      op,
		Message: fmt.Sprintf("Insufficient stock for %s (%s): available %d, requested %d", title, size, available, requested),
	}
}

// InvalidSize reports a size that the product does not offer.
func InvalidSize(op, title, size string) error {
	return &Error{
		Code:    ECONFLICT,
		Reason:  ReasonInvalidSize,
		Op:      op,
		Message: fmt.Sprintf("Invalid size %s for %s", size, title),
	}
}

// EmptyCart reports a checkout attempt with nothing in the cart.
func EmptyCart(op string) error {
	return &Error{
		Code:    EINVALID,
		Reason:  ReasonEmptyCart,
		Op:      op,
		Message: "Cart is empty",
	}
}

// AddressNotFound reports an address that does not exist for the requesting user.
func AddressNotFound(op, addressID string) error {
	return &Error{
		Code:    ENOTFOUND,
		Reason:  ReasonAddressNotFound,
		Op:      op,
		Message: fmt.Sprintf("Address not found: %s", addressID),
	}
}

// NotFoundInCart reports an update against a cart line that does not exist.
func NotFoundInCart(op, productID, size string) error {
	return &Error{
		Code:    ENOTFOUND,
		Reason:  ReasonNotFoundInCart,
		Op:      op,
		Message: fmt.Sprintf("Item not found in cart: %s (%s)", productID, size),
	}
}

// PaymentAlreadyUsed reports a payment intent that already backs an order.
func PaymentAlreadyUsed(op string) error {
	return &Error{
		Code:    ECONFLICT,
		Reason:  ReasonPaymentAlreadyUsed,
		Op:      op,
		Message: "This payment has already been used for another order",
	}
}

// DefaultAddressRace reports a concurrent attempt to set a second default.
func DefaultAddressRace(op string) error {
	return &Error{
		Code:    ECONFLICT,
		Reason:  ReasonDefaultAddressRace,
		Op:      op,
		Message: "Another default address was set at the same time; please retry",
	}
}

// StockConflict is returned by stores when a conditional stock decrement or
// cart version check fails inside an order transaction. Callers may retry.
type StockConflict struct {
	ProductID string
	Size      string
	// CartChanged is set when the conflict came from the cart, not from stock.
	CartChanged bool
}

func (e *StockConflict) Error() string {
	if e.CartChanged {
		return "cart changed during checkout"
	}
	return fmt.Sprintf("stock changed for product %s size %s", e.ProductID, e.Size)
}

// IsStockConflict reports whether err is (or wraps) a StockConflict.
func IsStockConflict(err error) bool {
	var sc *StockConflict
	return errors.As(err, &sc)
}

// PaymentNotCompleted reports a card payment that failed re-verification.
func PaymentNotCompleted(op, message string) error {
	return &Error{
		Code:    EPAYMENT,
		Reason:  ReasonPaymentNotCompleted,
		Op:      op,
		Message: message,
	}
}
