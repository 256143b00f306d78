// Package handler holds the JSON plumbing shared by the API and webhook
// handlers: response envelopes, error mapping and request decoding.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/telemetry"
)

// errorEnvelope is the body of every failed response.
type errorEnvelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Reason  string            `json:"reason,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EGONE:
		return http.StatusGone
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.ENOTIMPL:
		return http.StatusNotImplemented
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse writes err as an error envelope. Internal errors are logged
// and reported to Sentry; their details never reach the client.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	if status >= http.StatusInternalServerError {
		slog.Default().ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"op", domain.ErrorOp(err),
			"code", code,
			"request_id", domain.RequestIDFromContext(r.Context()),
			"error", err,
		)
		if code == domain.EINTERNAL {
			telemetry.CaptureError(r.Context(), err, map[string]any{"op": domain.ErrorOp(err)})
		}
	}

	writeError(w, r, status, errorEnvelope{
		Message: domain.ErrorMessage(err),
		Code:    code,
		Reason:  domain.ErrorReason(err),
		Fields:  domain.GetValidationFields(err),
	})
}

// ValidationErrorResponse writes a 400 with per-field messages. Errors that
// are not validation errors fall back to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if !domain.IsValidationError(err) {
		ErrorResponse(w, r, err)
		return
	}
	writeError(w, r, http.StatusBadRequest, errorEnvelope{
		Message: domain.ErrorMessage(err),
		Code:    domain.EINVALID,
		Fields:  domain.GetValidationFields(err),
	})
}

// NotFoundResponse writes a 404.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, errorEnvelope{
		Message: "The requested resource was not found.",
		Code:    domain.ENOTFOUND,
	})
}

// UnauthorizedResponse writes a 401.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusUnauthorized, errorEnvelope{
		Message: "Authentication required. Please sign in.",
		Code:    domain.EUNAUTHORIZED,
	})
}

// ForbiddenResponse writes a 403.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusForbidden, errorEnvelope{
		Message: "You do not have permission to perform this action.",
		Code:    domain.EFORBIDDEN,
	})
}

// InternalErrorResponse writes a 500 and reports err.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "http", "unexpected error"))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body errorEnvelope) {
	body.Success = false
	if !acceptsJSON(r) && strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Error(w, body.Message, status)
		return
	}
	writeJSON(w, status, body)
}

// acceptsJSON reports whether the client asked for, sent, or addressed JSON.
func acceptsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasSuffix(r.URL.Path, ".json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}
