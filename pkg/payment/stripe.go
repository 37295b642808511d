package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// StripeGateway implements Gateway on top of the Stripe API with Connect
// destination charges.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a gateway with its own API client. The SDK's built-in
// network retries are disabled; retries belong to the caller's resilience policy.
func NewStripeGateway(apiKey, webhookSecret string) *StripeGateway {
	cfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(0)}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}

	return &StripeGateway{
		api:           client.New(apiKey, backends),
		webhookSecret: webhookSecret,
	}
}

// FindCustomer searches for a customer tagged with the platform user id.
func (g *StripeGateway) FindCustomer(ctx context.Context, userID, email string) (*Customer, error) {
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query: fmt.Sprintf("email:%q AND metadata[%q]:%q", email, "userId", userID),
			Limit: stripe.Int64(1),
		},
	}
	params.Context = ctx

	iter := g.api.Customers.Search(params)
	if !iter.Next() {
		return nil, iter.Err()
	}

	c := iter.Customer()
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

// CreateCustomer creates a customer carrying the platform user id in metadata.
func (g *StripeGateway) CreateCustomer(ctx context.Context, p CustomerParams) (*Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(p.Email),
	}
	if p.Name != "" {
		params.Name = stripe.String(p.Name)
	}
	params.Context = ctx
	params.AddMetadata("userId", p.UserID)
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	c, err := g.api.Customers.New(params)
	if err != nil {
		return nil, err
	}
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

// FindPrice returns the active price registered under lookupKey.
func (g *StripeGateway) FindPrice(ctx context.Context, lookupKey string) (*Price, error) {
	params := &stripe.PriceListParams{
		Active:     stripe.Bool(true),
		LookupKeys: []*string{stripe.String(lookupKey)},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := g.api.Prices.List(params)
	if !iter.Next() {
		return nil, iter.Err()
	}
	return toPrice(iter.Price()), nil
}

// CreateRecurringPrice creates a recurring price and its product in one call.
func (g *StripeGateway) CreateRecurringPrice(ctx context.Context, p RecurringPriceParams) (*Price, error) {
	params := &stripe.PriceParams{
		Currency:   stripe.String(p.Currency),
		UnitAmount: stripe.Int64(p.UnitAmount),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(p.Interval),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(p.ProductName),
		},
		LookupKey: stripe.String(p.LookupKey),
		// Moves the key off an archived price that still holds it.
		TransferLookupKey: stripe.Bool(true),
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	price, err := g.api.Prices.New(params)
	if err != nil {
		return nil, err
	}
	return toPrice(price), nil
}

// CreateCheckoutSession creates a hosted checkout session routing funds to the
// seller's connected account.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p SessionParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:                stripe.String(string(p.Mode)),
		Customer:            stripe.String(p.CustomerID),
		SuccessURL:          stripe.String(p.SuccessURL),
		CancelURL:           stripe.String(p.CancelURL),
		ExpiresAt:           stripe.Int64(p.ExpiresAt.Unix()),
		AllowPromotionCodes: stripe.Bool(p.AllowPromotionCodes),
	}
	if p.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ClientReferenceID)
	}
	if p.CollectBillingAddress {
		params.BillingAddressCollection = stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired))
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	switch p.Mode {
	case SessionModeSubscription:
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(p.PriceID),
			Quantity: stripe.Int64(1),
		}}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			ApplicationFeePercent: stripe.Float64(p.ApplicationFeePercent),
			TransferData: &stripe.CheckoutSessionSubscriptionDataTransferDataParams{
				Destination: stripe.String(p.DestinationAccount),
			},
			Metadata: p.Metadata,
		}
		if p.TrialDays > 0 {
			params.SubscriptionData.TrialPeriodDays = stripe.Int64(p.TrialDays)
		}
	case SessionModePayment:
		if p.LineItem == nil {
			return nil, fmt.Errorf("%w: payment session without line item", ErrPermanent)
		}
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(p.LineItem.Name),
		}
		if p.LineItem.Description != "" {
			productData.Description = stripe.String(p.LineItem.Description)
		}
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(p.LineItem.Currency),
				UnitAmount:  stripe.Int64(p.LineItem.UnitAmount),
				ProductData: productData,
			},
			Quantity: stripe.Int64(p.LineItem.Quantity),
		}}
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(p.ApplicationFeeAmount),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(p.DestinationAccount),
			},
			Metadata: p.Metadata,
		}
	default:
		return nil, fmt.Errorf("%w: unknown session mode %q", ErrPermanent, p.Mode)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: s.ID, URL: s.URL, ExpiresAt: time.Unix(s.ExpiresAt, 0)}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout events.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	// Events pinned to an older account API version still carry the fields read here.
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if out.Type != EventCheckoutCompleted && out.Type != EventCheckoutExpired {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	cs := &CompletedSession{
		ID:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}
	if s.Customer != nil {
		cs.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		cs.SubscriptionID = s.Subscription.ID
	}
	if s.PaymentIntent != nil {
		cs.PaymentIntentID = s.PaymentIntent.ID
	}
	out.Session = cs
	return out, nil
}

func toPrice(p *stripe.Price) *Price {
	out := &Price{ID: p.ID, UnitAmount: p.UnitAmount, Currency: string(p.Currency)}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
	}
	return out
}
