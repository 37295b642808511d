package payment

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/stripe/stripe-go/v74"
)

// ErrorClass tells the caller whether a failed provider call may succeed on retry.
type ErrorClass int

const (
	// ClassUnknown is anything that is not recognisably a provider failure.
	ClassUnknown ErrorClass = iota
	// ClassTransient covers network failures, provider 5xx and provider throttling.
	ClassTransient
	// ClassPermanent covers validation and business errors reported by the provider.
	ClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Sentinels gateways other than Stripe wrap to declare the class of a failure.
var (
	ErrTransient = errors.New("payment provider temporarily unavailable")
	ErrPermanent = errors.New("payment provider rejected the request")
)

// Classify maps a provider error onto an ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, ErrTransient) {
		return ClassTransient
	}
	if errors.Is(err, ErrPermanent) {
		return ClassPermanent
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return classifyStripe(stripeErr)
	}

	// The caller's deadline is not the provider's fault and is handled upstream.
	if errors.Is(err, context.Canceled) {
		return ClassUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	return ClassUnknown
}

func classifyStripe(e *stripe.Error) ErrorClass {
	switch {
	case e.HTTPStatusCode == http.StatusTooManyRequests,
		e.Code == stripe.ErrorCodeRateLimit,
		string(e.Code) == "lock_timeout":
		return ClassTransient
	case e.HTTPStatusCode == http.StatusConflict && e.Type == stripe.ErrorTypeIdempotency:
		// A concurrent request with the same idempotency key is still in flight.
		return ClassTransient
	case e.HTTPStatusCode >= http.StatusInternalServerError,
		e.Type == stripe.ErrorTypeAPI:
		return ClassTransient
	case e.HTTPStatusCode == 0 && e.Type == "":
		// No response was received.
		return ClassTransient
	default:
		return ClassPermanent
	}
}
