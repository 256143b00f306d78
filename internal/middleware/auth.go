package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/agrimart/internal/auth"
	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/telemetry"
)

// TokenVerifier validates a bearer token. *auth.JWTVerifier satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// UserResolver turns verified claims into the local user record.
type UserResolver interface {
	Resolve(ctx context.Context, claims *auth.Claims) (*domain.User, error)
}

// Authenticate resolves the bearer token, if any, into a *domain.User on the
// context. Requests without an Authorization header continue as guests; a
// header that does not verify is rejected with 401.
func Authenticate(verifier TokenVerifier, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				respondUnauthorized(w, r, "Authorization header must be a bearer token")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				GetLogger(r.Context()).Debug("bearer token rejected", "error", err)
				respondUnauthorized(w, r, "Invalid or expired token")
				return
			}

			user, err := users.Resolve(r.Context(), claims)
			if err != nil {
				respondWithError(w, r, err)
				return
			}

			ctx := domain.NewContextWithUser(r.Context(), user)
			ctx = context.WithValue(ctx, LoggerContextKey, GetLogger(r.Context()).With(slog.String("user_id", user.ID)))
			telemetry.SetUserOnHub(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth rejects guests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			respondUnauthorized(w, r, "Authentication required. Please sign in.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwner admits owners and admins. Guests get 401, other users 403.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := domain.UserFromContext(r.Context())
		if user == nil {
			respondUnauthorized(w, r, "Authentication required. Please sign in.")
			return
		}
		if !user.IsOwner() {
			respondForbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
