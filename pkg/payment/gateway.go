package payment

import (
	"context"
	"time"
)

// Gateway defines the operations the checkout flow needs from a payment provider.
// Implementations return raw provider errors; Classify decides whether they are
// worth retrying.
type Gateway interface {
	// FindCustomer looks up a customer previously created for userID.
	FindCustomer(ctx context.Context, userID, email string) (*Customer, error)
	// CreateCustomer creates a billing customer.
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	// FindPrice returns the active price registered under lookupKey, if any.
	FindPrice(ctx context.Context, lookupKey string) (*Price, error)
	// CreateRecurringPrice creates a recurring price with an inline product.
	CreateRecurringPrice(ctx context.Context, params RecurringPriceParams) (*Price, error)
	// CreateCheckoutSession creates a hosted checkout session.
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
	// ParseWebhook verifies the signature header and decodes the event.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// SessionMode is the kind of hosted checkout.
type SessionMode string

const (
	SessionModePayment      SessionMode = "payment"
	SessionModeSubscription SessionMode = "subscription"
)

// Webhook event types the platform consumes.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

// Customer is a provider billing customer.
type Customer struct {
	ID    string
	Email string
}

// CustomerParams holds the inputs for creating a customer.
type CustomerParams struct {
	UserID         string
	Email          string
	Name           string
	IdempotencyKey string
}

// Price is a provider price object.
type Price struct {
	ID         string
	UnitAmount int64
	Currency   string
	Interval   string
}

// RecurringPriceParams holds the inputs for creating a recurring price.
type RecurringPriceParams struct {
	LookupKey      string
	ProductName    string
	UnitAmount     int64
	Currency       string
	Interval       string
	Metadata       map[string]string
	IdempotencyKey string
}

// LineItem is an inline, non-persisted line item for one-time payments.
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Currency    string
	Quantity    int64
}

// SessionParams holds the inputs for creating a checkout session. Payment mode uses
// LineItem and ApplicationFeeAmount; subscription mode uses PriceID and
// ApplicationFeePercent.
type SessionParams struct {
	Mode                  SessionMode
	CustomerID            string
	ClientReferenceID     string
	SuccessURL            string
	CancelURL             string
	ExpiresAt             time.Time
	AllowPromotionCodes   bool
	CollectBillingAddress bool
	LineItem              *LineItem
	PriceID               string
	DestinationAccount    string
	ApplicationFeeAmount  int64
	ApplicationFeePercent float64
	TrialDays             int64
	Metadata              map[string]string
	IdempotencyKey        string
}

// Session is a created checkout session.
type Session struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Event is a verified webhook event. Session is set for checkout.session.* events.
type Event struct {
	ID      string
	Type    string
	Session *CompletedSession
}

// CompletedSession is the subset of a checkout session the webhook consumer reads.
type CompletedSession struct {
	ID              string
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	CustomerID      string
	SubscriptionID  string
	PaymentIntentID string
	Metadata        map[string]string
}

// IsPaid reports whether funds were captured or no payment is due (trials).
func (s *CompletedSession) IsPaid() bool {
	return s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}
