// Package middleware holds the API's request pipeline: request ids, scoped
// logging, bearer authentication, body and time limits, rate limiting,
// security headers and Prometheus metrics.
package middleware

import (
	"net/http"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
)

// respondWithError writes the standard error envelope and logs client errors
// with the request-scoped logger. Server errors are logged by the handler
// package.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := handler.ErrorCodeToHTTPStatus(domain.ErrorCode(err))
	if status < http.StatusInternalServerError {
		GetLogger(r.Context()).Info("request rejected",
			"code", domain.ErrorCode(err),
			"status", status,
			"error", err.Error(),
		)
	}
	handler.ErrorResponse(w, r, err)
}

func respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	respondWithError(w, r, domain.Unauthorized("auth", message))
}

func respondForbidden(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Forbidden("auth", "You do not have permission to perform this action"))
}

func respondTooManyRequests(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Errorf(domain.ERATELIMIT, "ratelimit", "Too many requests. Please slow down."))
}

func respondTooLarge(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Errorf(domain.ETOOLARGE, "http", "Request body too large"))
}
