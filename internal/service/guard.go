package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/smuppy/backend/internal/domain"
	"go.uber.org/zap"
)

// Checkout quota per buyer.
const (
	CheckoutRateLimit  = 5
	CheckoutRateWindow = time.Minute
	checkoutRatePrefix = "checkout:"
)

// RequestGuard authenticates, rate limits and validates checkout requests. Nothing
// downstream runs unless Check passes.
type RequestGuard struct {
	limiter  RateLimitStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRequestGuard creates a guard backed by limiter.
func NewRequestGuard(limiter RateLimitStore, logger *zap.Logger) *RequestGuard {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &RequestGuard{
		limiter:  limiter,
		validate: validate,
		logger:   logger,
	}
}

// Check consumes one unit of the caller's quota and validates req. The limiter fails
// closed: a store error denies the request.
func (g *RequestGuard) Check(ctx context.Context, userID string, req *domain.CheckoutRequest) error {
	if userID == "" {
		return domain.ErrUnauthorized("authentication required")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return domain.ErrUnauthorized("invalid identity")
	}

	allowed, err := g.limiter.Allow(ctx, checkoutRatePrefix+userID, CheckoutRateLimit, CheckoutRateWindow)
	if err != nil {
		g.logger.Error("rate limit store unavailable, denying checkout",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return domain.ErrRateLimited("too many checkout attempts, try again later").WithRetryAfter(CheckoutRateWindow)
	}
	if !allowed {
		g.logger.Info("checkout rate limit exceeded", zap.String("user_id", userID))
		return domain.ErrRateLimited("too many checkout attempts, try again later").WithRetryAfter(CheckoutRateWindow)
	}

	if req == nil {
		return domain.ErrBadRequest("request body is required")
	}
	if err := g.validate.Struct(req); err != nil {
		return domain.ErrBadRequest(formatValidationErrors(err))
	}

	if req.BusinessID == userID {
		return domain.ErrBadRequest("cannot purchase your own service")
	}
	return nil
}

func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid id", fe.Field()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must be a date in YYYY-MM-DD form", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}
