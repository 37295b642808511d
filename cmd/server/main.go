package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/smuppy/backend/internal/config"
	"github.com/smuppy/backend/internal/handler"
	"github.com/smuppy/backend/internal/metrics"
	appMiddleware "github.com/smuppy/backend/internal/middleware"
	"github.com/smuppy/backend/internal/repository"
	"github.com/smuppy/backend/internal/service"
	"github.com/smuppy/backend/internal/telemetry"
	"github.com/smuppy/backend/pkg/logger"
	"github.com/smuppy/backend/pkg/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.OTelServiceName)
	if err != nil {
		log.Fatal("tracing setup failed", zap.Error(err))
	}

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database error", zap.Error(err))
	}
	defer db.Close()

	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal("migration error", zap.Error(err))
	}
	log.Info("database connected and migrated")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	var gateway payment.Gateway
	gatewayName := "stripe"
	if cfg.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	} else {
		gateway = payment.NewMockGateway()
		gatewayName = "mock"
		log.Warn("STRIPE_SECRET_KEY not set, using in-memory payment gateway")
	}

	var limiter service.RateLimitStore
	switch cfg.Checkout.RateLimitStore {
	case config.RateLimitStoreMemory:
		keyed := appMiddleware.NewKeyedLimiter()
		defer keyed.Stop()
		limiter = keyed
		log.Warn("checkout quota is per instance", zap.String("store", cfg.Checkout.RateLimitStore))
	default:
		rateRepo := repository.NewRateLimitRepository(db)
		service.NewQuotaJanitor(rateRepo, 10*time.Minute, log).Start(ctx)
		limiter = rateRepo
	}

	profileRepo := repository.NewProfileRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	resilience := service.NewResilience(service.RetryPolicy{
		MaxAttempts:    cfg.Provider.MaxAttempts,
		InitialBackoff: cfg.Provider.InitialBackoff,
		MaxBackoff:     cfg.Provider.MaxBackoff,
	}, log, collector)

	authSvc := service.NewAuthService(cfg.JWTSecret)
	checkoutSvc := service.NewCheckoutService(
		service.NewRequestGuard(limiter, log),
		profileRepo,
		offeringRepo,
		service.NewCustomerResolver(profileRepo, gateway, resilience, log),
		service.NewSessionBuilder(gateway, resilience, cfg.Checkout.Currency),
		collector,
		log,
		service.CheckoutOptions{
			SuccessURL: cfg.Checkout.SuccessURL,
			CancelURL:  cfg.Checkout.CancelURL,
			Timeout:    cfg.Checkout.Timeout,
		},
	)
	purchaseSvc := service.NewPurchaseService(gateway, purchaseRepo, collector, log)

	healthHandler := handler.NewHealthHandler(db, gatewayName)
	paymentHandler := handler.NewPaymentHandler(checkoutSvc)
	webhookHandler := handler.NewWebhookHandler(purchaseSvc)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(appMiddleware.Recovery(log))
	r.Use(appMiddleware.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 20 req/sec per IP, burst of 40
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	defer globalRL.Stop()
	r.Use(globalRL.Middleware())

	r.Get("/health", healthHandler.Check)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))
	r.Post("/api/payments/webhook", webhookHandler.HandleStripe)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))
		r.Post("/api/payments/checkout", paymentHandler.CreateCheckout)
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "http.server"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Checkout.Timeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("tracer shutdown failed", zap.Error(err))
		}
	}()

	log.Info("checkout service listening",
		zap.String("addr", addr),
		zap.String("env", cfg.Env),
		zap.String("gateway", gatewayName),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
	<-idle
}
