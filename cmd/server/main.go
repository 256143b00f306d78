package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dukerupert/agrimart/internal"
	"github.com/dukerupert/agrimart/internal/address"
	"github.com/dukerupert/agrimart/internal/auth"
	"github.com/dukerupert/agrimart/internal/billing"
	"github.com/dukerupert/agrimart/internal/cookie"
	"github.com/dukerupert/agrimart/internal/crypto"
	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/email"
	"github.com/dukerupert/agrimart/internal/events"
	"github.com/dukerupert/agrimart/internal/handler"
	"github.com/dukerupert/agrimart/internal/handler/api"
	"github.com/dukerupert/agrimart/internal/handler/webhook"
	"github.com/dukerupert/agrimart/internal/jobs"
	"github.com/dukerupert/agrimart/internal/memory"
	"github.com/dukerupert/agrimart/internal/middleware"
	"github.com/dukerupert/agrimart/internal/mongodb"
	"github.com/dukerupert/agrimart/internal/postgres"
	"github.com/dukerupert/agrimart/internal/router"
	"github.com/dukerupert/agrimart/internal/routes"
	"github.com/dukerupert/agrimart/internal/service"
	"github.com/dukerupert/agrimart/internal/shipping"
	"github.com/dukerupert/agrimart/internal/storage"
	"github.com/dukerupert/agrimart/internal/tax"
	"github.com/dukerupert/agrimart/internal/telemetry"
	"github.com/dukerupert/agrimart/internal/worker"
)

// store is every contract the services need. The three drivers implement
// all of it.
type store interface {
	domain.ProductStore
	domain.CartRepository
	domain.AddressStore
	domain.OrderStore
	domain.UserStore
	domain.CategoryTypeStore
	jobs.Store
	Close() error
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Error tracking
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	telemetry.InitBusinessMetrics("agrimart")

	// ==========================================================================
	// Store
	// ==========================================================================

	db, ping, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	timeout := cfg.Checkout.OperationTimeout

	// ==========================================================================
	// Adapters
	// ==========================================================================

	billingProvider, err := newBillingProvider(cfg, logger)
	if err != nil {
		return err
	}

	files, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("Storage initialized", "provider", cfg.Storage.Provider)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		nats, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher = nats
		logger.Info("NATS publisher connected", "url", cfg.NATS.URL)
	}
	defer publisher.Close()

	var sender email.Sender
	if cfg.Email.Enabled() {
		smtp := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := smtp.Ping(pingCtx); err != nil {
			// Jobs retry, so a relay that is down at boot is not fatal.
			logger.Warn("SMTP server unreachable", "host", cfg.Email.Host, "error", err)
		}
		cancel()
		sender = smtp
	} else {
		logger.Warn("SMTP credentials not configured, emails will be logged only")
		sender = email.NewLogSender(logger)
	}
	emailService, err := email.NewService(sender)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	var taxCalculator tax.Calculator = tax.NewNoTaxCalculator()
	if !cfg.Checkout.TaxRate.IsZero() {
		taxCalculator, err = tax.NewPercentageCalculator(cfg.Checkout.TaxRate)
		if err != nil {
			return fmt.Errorf("failed to initialize tax calculator: %w", err)
		}
	}

	codec, err := newCartCodec(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, bearer tokens will be rejected")
	}
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)

	// ==========================================================================
	// Services
	// ==========================================================================

	notifier := service.NewNotifier(publisher, db, timeout, logger)
	userService := service.NewUserService(db, timeout, logger)
	productService := service.NewProductService(db, db, files, timeout, logger)
	taxonomyService := service.NewTaxonomyService(db, db, timeout, logger)
	cartService := service.NewCartService(db, db, cfg.Cart.Reconcile, timeout, logger)
	addressService := service.NewAddressService(db, address.NewBasicValidator(), timeout, logger)
	orderService := service.NewOrderService(db, notifier, timeout, logger)
	checkoutService := service.NewCheckoutService(
		db,
		db,
		db,
		db,
		billingProvider,
		shipping.NewStandardProvider(cfg.Checkout.ShippingFee),
		taxCalculator,
		notifier,
		service.CheckoutConfig{
			Currency:      cfg.Checkout.Currency,
			StockRetryMax: cfg.Checkout.StockRetryMax,
			Timeout:       timeout,
		},
		logger,
	)
	paymentService := service.NewPaymentService(checkoutService, billingProvider, timeout, logger)

	// ==========================================================================
	// Background worker
	// ==========================================================================

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		w := worker.NewWorker(db, worker.Config{
			PollInterval:   cfg.Worker.PollInterval,
			MaxConcurrency: cfg.Worker.Concurrency,
		}, logger)
		w.RegisterEmailJobs(jobs.EmailDeps{Orders: db, Users: db, Email: emailService})
		go func() {
			defer close(workerDone)
			if err := w.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "error", err)
			}
		}()
	} else {
		close(workerDone)
	}

	// ==========================================================================
	// Middleware
	// ==========================================================================

	metrics := middleware.NewMetrics("agrimart", nil)

	defaultRateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.Burst,
	})
	defer defaultRateLimiter.Stop()
	checkoutRateLimiter := middleware.NewRateLimiter(middleware.CheckoutRateLimiterConfig(cfg.RateLimit.CheckoutPerMinute))
	defer checkoutRateLimiter.Stop()

	// ==========================================================================
	// Routes
	// ==========================================================================

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		telemetry.SentryMiddleware(),
		metrics.Middleware,
		middleware.SecurityHeaders(middleware.APISecurityHeadersConfig(cfg.Env == "prod")),
		middleware.Timeout(timeout+5*time.Second),
		defaultRateLimiter.Middleware,
		router.Logger(logger),
		middleware.WithRequestLogger(logger),
		middleware.Authenticate(verifier, userService),
	)
	r.NotFound(handler.NotFoundResponse)

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		ProductHandler:  api.NewProductHandler(productService),
		TaxonomyHandler: api.NewTaxonomyHandler(taxonomyService),
		CartHandler:     api.NewCartHandler(cartService, codec),
		OrderHandler:    api.NewOrderHandler(checkoutService, orderService),
		AddressHandler:  api.NewAddressHandler(addressService),
		PaymentHandler:  api.NewPaymentHandler(paymentService),
		UserHandler:     api.NewUserHandler(userService),
		CheckoutLimit:   checkoutRateLimiter.Middleware,
	})

	stripeWebhookHandler := webhook.NewStripeHandler(billingProvider, orderService, cfg.Stripe.WebhookSecret, logger)
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	})

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Health:  api.Health(ping),
		Metrics: metrics.Handler(),
	})

	// Uploaded product images when stored on local disk
	if cfg.Storage.Provider == "local" || cfg.Storage.Provider == "" {
		prefix := strings.TrimSuffix(cfg.Storage.LocalURL, "/") + "/"
		r.Handle(http.MethodGet, prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Storage.LocalPath))))
	}

	// CORS runs outside the router so preflights reach every path.
	cors := router.CORS(router.SplitOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")))

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           cors(r),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			stopWorker()
			<-workerDone
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	stopWorker()
	<-workerDone
	logger.Info("Server stopped")

	return nil
}

// openStore opens the backend named by STORE_DRIVER and returns a
// health-check function for it.
func openStore(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (store, api.Pinger, error) {
	switch cfg.StoreDriver {
	case "postgres":
		logger.Info("Connecting to PostgreSQL...")
		db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}

		logger.Info("Running database migrations...")
		sqlDB := db.SQLDB()
		err = internal.RunMigrations(sqlDB)
		sqlDB.Close()
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database migrations completed successfully")
		return db, db.Ping, nil

	case "mongo":
		logger.Info("Connecting to MongoDB...", "database", cfg.Mongo.Database)
		db, err := mongodb.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("mongodb connection failed: %w", err)
		}
		return db, db.Ping, nil

	default:
		logger.Warn("Using in-memory store, data is lost on restart")
		db := memory.New()
		return db, func(context.Context) error { return db.Ping() }, nil
	}
}

// newBillingProvider returns Stripe when a secret key is configured and the
// in-process mock otherwise. Production refuses to start without Stripe.
func newBillingProvider(cfg *internal.Config, logger *slog.Logger) (billing.Provider, error) {
	if cfg.Stripe.SecretKey == "" {
		if cfg.Env == "prod" {
			return nil, errors.New("STRIPE_SECRET_KEY must be set in production environment")
		}
		logger.Warn("STRIPE_SECRET_KEY not set, card payments use the mock provider")
		return billing.NewMockProvider(), nil
	}

	provider, err := billing.NewStripeProvider(billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", strings.HasPrefix(cfg.Stripe.SecretKey, "sk_test_"))
	return provider, nil
}

// newCartCodec builds the guest cart cookie codec. Without a configured key
// a random one is generated, so guest carts do not survive a restart.
func newCartCodec(cfg *internal.Config, logger *slog.Logger) (*cookie.CartCodec, error) {
	var key []byte
	var err error
	if cfg.Cart.CookieKey != "" {
		key, err = crypto.DecodeKeyBase64(cfg.Cart.CookieKey)
		if err != nil {
			return nil, fmt.Errorf("invalid CART_COOKIE_KEY: %w", err)
		}
	} else {
		logger.Warn("CART_COOKIE_KEY not set, generating an ephemeral key")
		key, err = crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate cart cookie key: %w", err)
		}
	}

	enc, err := crypto.NewAESEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cart cookie encryption: %w", err)
	}
	return cookie.NewCartCodec(enc, cookie.NewConfig("", cfg.Cart.CookieSecure)), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
