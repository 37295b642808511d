package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smuppy/backend/internal/domain"
	"github.com/smuppy/backend/pkg/payment"
)

const (
	// SessionTTL is how long a hosted checkout stays payable.
	SessionTTL = 30 * time.Minute
	// sessionExpiryMargin absorbs request latency and retries of the create call, so
	// the provider never sees less than SessionTTL.
	sessionExpiryMargin = time.Minute
)

// SessionBuilder turns a CheckoutIntent into a hosted checkout session with a
// destination charge to the seller.
type SessionBuilder struct {
	gateway    payment.Gateway
	resilience *Resilience
	currency   string
	now        func() time.Time
}

func NewSessionBuilder(gateway payment.Gateway, resilience *Resilience, currency string) *SessionBuilder {
	return &SessionBuilder{
		gateway:    gateway,
		resilience: resilience,
		currency:   strings.ToLower(currency),
		now:        time.Now,
	}
}

// PriceLookupKey identifies a reusable recurring price. Any change to the amount,
// interval or currency yields a new key and therefore a new price.
func PriceLookupKey(serviceID, interval string, amount int64, currency string) string {
	return fmt.Sprintf("svc_%s_%s_%d_%s", serviceID, interval, amount, strings.ToLower(currency))
}

// sessionExpiry returns the expiry for a session created at now, rounded up to the
// second the provider works in.
func sessionExpiry(now time.Time) time.Time {
	at := now.Add(SessionTTL + sessionExpiryMargin)
	if t := at.Truncate(time.Second); t.Before(at) {
		return t.Add(time.Second)
	}
	return at
}

// Build creates the session for intent and stamps intent.ExpiresAt.
func (b *SessionBuilder) Build(ctx context.Context, intent *domain.CheckoutIntent, customerID string, seller *domain.SellerAccount, offering *domain.ServiceOffering) (*payment.Session, error) {
	metadata := intent.Metadata.ToMap()
	params := payment.SessionParams{
		CustomerID:            customerID,
		ClientReferenceID:     intent.Metadata.BuyerID,
		SuccessURL:            intent.SuccessURL,
		CancelURL:             intent.CancelURL,
		AllowPromotionCodes:   true,
		CollectBillingAddress: true,
		DestinationAccount:    *seller.PayoutAccountID,
		Metadata:              metadata,
		// Fixed for this request so retries of the call are deduplicated by the provider.
		IdempotencyKey: "checkout-" + uuid.NewString(),
	}

	if intent.Mode.IsRecurring() {
		price, err := b.recurringPrice(ctx, intent, offering)
		if err != nil {
			return nil, err
		}
		params.Mode = payment.SessionModeSubscription
		params.PriceID = price.ID
		params.ApplicationFeePercent = domain.SubscriptionFeePercent
		if offering.TrialDays > 0 {
			params.TrialDays = int64(offering.TrialDays)
		}
	} else {
		params.Mode = payment.SessionModePayment
		params.LineItem = &payment.LineItem{
			Name:        intent.ProductName,
			Description: intent.Description,
			UnitAmount:  intent.PriceCents,
			Currency:    b.currency,
			Quantity:    1,
		}
		params.ApplicationFeeAmount = intent.CommissionCents
	}

	// Set once per request: every retry under the same idempotency key must send
	// identical parameters.
	params.ExpiresAt = sessionExpiry(b.now())
	intent.ExpiresAt = params.ExpiresAt

	return call(ctx, b.resilience, payment.OpCreateCheckoutSession, func(ctx context.Context) (*payment.Session, error) {
		return b.gateway.CreateCheckoutSession(ctx, params)
	})
}

// recurringPrice reuses the active price for this service, amount and interval or
// creates it.
func (b *SessionBuilder) recurringPrice(ctx context.Context, intent *domain.CheckoutIntent, offering *domain.ServiceOffering) (*payment.Price, error) {
	interval := intent.Metadata.Period.Interval()
	key := PriceLookupKey(offering.ID, interval, intent.PriceCents, b.currency)

	price, err := call(ctx, b.resilience, payment.OpFindPrice, func(ctx context.Context) (*payment.Price, error) {
		return b.gateway.FindPrice(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	if price != nil {
		return price, nil
	}

	return call(ctx, b.resilience, payment.OpCreateRecurringPrice, func(ctx context.Context) (*payment.Price, error) {
		return b.gateway.CreateRecurringPrice(ctx, payment.RecurringPriceParams{
			LookupKey:   key,
			ProductName: intent.ProductName,
			UnitAmount:  intent.PriceCents,
			Currency:    b.currency,
			Interval:    interval,
			Metadata: map[string]string{
				domain.MetaServiceID: offering.ID,
				domain.MetaSellerID:  offering.SellerID,
			},
			IdempotencyKey: "price-" + key,
		})
	})
}
