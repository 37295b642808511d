package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Rate limit store backends.
const (
	RateLimitStorePostgres = "postgres"
	RateLimitStoreMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        int
	Env         string
	LogLevel    string
	JWTSecret   string
	DatabaseURL string
	CORSOrigins []string

	StripeSecretKey     string
	StripeWebhookSecret string

	Checkout CheckoutConfig
	Provider ProviderConfig

	OTLPEndpoint    string
	OTelServiceName string
}

// CheckoutConfig drives session construction and request guarding.
type CheckoutConfig struct {
	Currency       string
	SuccessURL     string
	CancelURL      string
	Timeout        time.Duration
	RateLimitStore string
}

// ProviderConfig is the retry policy for payment provider calls.
type ProviderConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "4001"))
	if err != nil {
		return nil, fmt.Errorf("PORT must be a number: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	env := getEnv("ENV", "development")
	stripeKey := getEnv("STRIPE_SECRET_KEY", "")
	webhookSecret := getEnv("STRIPE_WEBHOOK_SECRET", "")
	if env == "production" && stripeKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required in production")
	}
	if stripeKey != "" && webhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	timeout, err := getDuration("CHECKOUT_TIMEOUT", 25*time.Second)
	if err != nil {
		return nil, err
	}

	store := strings.ToLower(getEnv("CHECKOUT_RATE_LIMIT_STORE", RateLimitStorePostgres))
	if store != RateLimitStorePostgres && store != RateLimitStoreMemory {
		return nil, fmt.Errorf("CHECKOUT_RATE_LIMIT_STORE must be %q or %q, got %q", RateLimitStorePostgres, RateLimitStoreMemory, store)
	}

	attempts, err := strconv.Atoi(getEnv("PROVIDER_MAX_ATTEMPTS", "3"))
	if err != nil || attempts < 1 {
		return nil, fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be a positive number")
	}

	initial, err := getDuration("PROVIDER_INITIAL_BACKOFF", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	maxBackoff, err := getDuration("PROVIDER_MAX_BACKOFF", 2*time.Second)
	if err != nil {
		return nil, err
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8081"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:                port,
		Env:                 env,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		JWTSecret:           jwtSecret,
		DatabaseURL:         dbURL,
		CORSOrigins:         origins,
		StripeSecretKey:     stripeKey,
		StripeWebhookSecret: webhookSecret,
		Checkout: CheckoutConfig{
			Currency:       strings.ToLower(getEnv("CHECKOUT_CURRENCY", "eur")),
			SuccessURL:     getEnv("CHECKOUT_SUCCESS_URL", "smuppy://checkout/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:      getEnv("CHECKOUT_CANCEL_URL", "smuppy://checkout/cancel"),
			Timeout:        timeout,
			RateLimitStore: store,
		},
		Provider: ProviderConfig{
			MaxAttempts:    attempts,
			InitialBackoff: initial,
			MaxBackoff:     maxBackoff,
		},
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "smuppy-checkout"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
