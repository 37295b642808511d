package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/smuppy/backend/internal/domain"
	"github.com/smuppy/backend/internal/metrics"
	"github.com/smuppy/backend/pkg/payment"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RetryPolicy bounds the retries of one provider call.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Resilience runs provider calls with classification, bounded exponential backoff and
// per-call observability. Errors it returns are always *domain.AppError.
type Resilience struct {
	policy  RetryPolicy
	logger  *zap.Logger
	metrics metrics.Recorder
	tracer  trace.Tracer
}

// NewResilience creates a wrapper. A non-positive MaxAttempts means a single attempt.
func NewResilience(policy RetryPolicy, logger *zap.Logger, rec metrics.Recorder) *Resilience {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Resilience{
		policy:  policy,
		logger:  logger,
		metrics: rec,
		tracer:  otel.Tracer("github.com/smuppy/backend/internal/service"),
	}
}

// Do runs fn under the retry policy. Only transient failures are retried.
func (r *Resilience) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "payment."+op)
	defer span.End()

	start := time.Now()
	attempts := 0
	class := payment.ClassUnknown

	operation := func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		class = payment.Classify(err)
		if class != payment.ClassTransient || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.metrics.RecordProviderRetry(op)
		r.logger.Warn("provider call failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", wait),
			zap.String("class", class.String()),
		)
	}

	err := backoff.RetryNotify(operation, r.backoff(ctx), notify)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("payment.attempts", attempts))

	if err == nil {
		outcome := "ok"
		if attempts > 1 {
			outcome = "retried"
			r.logger.Info("provider call succeeded after retry",
				zap.String("operation", op),
				zap.Int("attempts", attempts),
				zap.Duration("duration", elapsed),
			)
		} else {
			r.logger.Debug("provider call succeeded",
				zap.String("operation", op),
				zap.Duration("duration", elapsed),
			)
		}
		r.metrics.RecordProviderCall(op, outcome, elapsed)
		return nil
	}

	appErr, outcome := r.translate(ctx, op, attempts, class, err)
	span.SetStatus(codes.Error, outcome)
	r.metrics.RecordProviderCall(op, outcome, elapsed)
	r.logger.Error("provider call failed",
		zap.String("operation", op),
		zap.Int("attempts", attempts),
		zap.Duration("duration", elapsed),
		zap.String("outcome", outcome),
		zap.String("kind", string(appErr.Kind)),
	)
	return appErr
}

func (r *Resilience) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialBackoff
	b.MaxInterval = r.policy.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)
}

// translate maps the final failure onto the caller-facing taxonomy. The provider error
// is flattened to text so its concrete type stays behind this boundary.
func (r *Resilience) translate(ctx context.Context, op string, attempts int, class payment.ErrorClass, err error) (*domain.AppError, string) {
	cause := fmt.Errorf("%s failed after %d attempt(s): %v", op, attempts, err)

	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrUpstreamUnavailable("payment provider did not respond in time", cause), "timeout"
	}

	switch class {
	case payment.ClassTransient:
		return domain.ErrUpstreamUnavailable("payment provider is temporarily unavailable", cause), "transient"
	case payment.ClassPermanent:
		return domain.ErrUpstreamUnavailable("payment provider rejected the request", cause), "permanent"
	default:
		return domain.ErrInternal("unexpected payment error", cause), "unknown"
	}
}

// call adapts Resilience.Do to provider calls that return a value.
func call[T any](ctx context.Context, r *Resilience, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
