package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/dukerupert/agrimart/internal/domain"
)

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN string

	// Enabled controls whether Sentry is active
	Enabled bool

	Environment string
	Release     string

	// SampleRate is the fraction of errors captured; 0 means 1.0
	SampleRate float64

	// TracesSampleRate is the fraction of transactions traced; 0 disables tracing
	TracesSampleRate float64

	Debug bool
}

var sentryEnabled bool

// InitSentry initializes the Sentry client.
// Returns a cleanup function that flushes buffered events.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	sentryEnabled = false

	if !cfg.Enabled {
		logger.Info("Sentry disabled (SENTRY_ENABLED=false)")
		return func() {}, nil
	}
	if cfg.DSN == "" {
		logger.Warn("Sentry DSN not configured, disabling error tracking")
		return func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		Debug:            cfg.Debug,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Client errors are expected traffic.
			if hint != nil && hint.OriginalException != nil {
				switch domain.ErrorCode(hint.OriginalException) {
				case domain.EINTERNAL, domain.EUNAVAILABLE:
				default:
					return nil
				}
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	sentryEnabled = true

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
		"traces_sample_rate", cfg.TracesSampleRate,
	)

	return func() { sentry.Flush(2 * time.Second) }, nil
}

// IsEnabled returns whether Sentry is currently enabled
func IsEnabled() bool {
	return sentryEnabled
}

// CaptureError captures err using the hub on ctx when present.
// Safe to call even when Sentry is disabled.
func CaptureError(ctx context.Context, err error, extras map[string]any) {
	if !IsEnabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if id := domain.RequestIDFromContext(ctx); id != "" {
			scope.SetTag("request_id", id)
		}
		if op := domain.ErrorOp(err); op != "" {
			scope.SetTag("op", op)
		}
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}

// AddBreadcrumb records a breadcrumb on the hub from ctx.
func AddBreadcrumb(ctx context.Context, category, message string, data map[string]any) {
	if !IsEnabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Data:     data,
		Level:    sentry.LevelInfo,
	}, nil)
}

// StartSpan starts a performance monitoring span.
func StartSpan(ctx context.Context, operation, description string) (context.Context, func()) {
	if !IsEnabled() {
		return ctx, func() {}
	}

	span := sentry.StartSpan(ctx, operation)
	span.Description = description
	return span.Context(), span.Finish
}

// SentryMiddleware gives each request its own hub, tags it with the caller
// once known, and reports panics before re-raising them for the recovery
// middleware.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			hub.Scope().SetRequest(r)
			ctx := sentry.SetHubOnContext(r.Context(), hub)

			defer func() {
				if err := recover(); err != nil {
					hub.RecoverWithContext(ctx, err)
					panic(err)
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetUserOnHub tags the request's hub with the resolved user.
func SetUserOnHub(ctx context.Context, user *domain.User) {
	if !IsEnabled() || user == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetUser(sentry.User{ID: user.ID, Email: user.Email})
			scope.SetTag("role", string(user.Role))
		})
	}
}
