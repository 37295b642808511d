package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smuppy/backend/internal/domain"
	"github.com/smuppy/backend/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected *domain.AppError, got %T: %v", err, err)
	assert.Equal(t, kind, appErr.Kind, appErr.Message)
}

func TestCheckout_DropInSucceeds(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(nil)

	result, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
	require.NoError(t, err)

	assert.Equal(t, domain.ModeDropIn, result.Intent.Mode)
	assert.Equal(t, int64(300), result.Intent.CommissionCents)
	assert.NotEmpty(t, result.CheckoutURL)
	assert.NotEmpty(t, result.SessionID)

	resp := result.Response()
	assert.True(t, resp.Success)
	assert.Equal(t, f.now.Add(SessionTTL+sessionExpiryMargin).Unix(), resp.ExpiresAt)

	sessions := f.gateway.Sessions()
	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, payment.SessionModePayment, s.Mode)
	assert.Equal(t, int64(300), s.ApplicationFeeAmount)
	assert.Equal(t, "acct_seller", s.DestinationAccount)
	assert.True(t, s.AllowPromotionCodes)
	assert.True(t, s.CollectBillingAddress)
	assert.Equal(t, f.now.Add(SessionTTL+sessionExpiryMargin), s.ExpiresAt)
	require.NotNil(t, s.LineItem)
	assert.Equal(t, "eur", s.LineItem.Currency)
	assert.Equal(t, int64(2000), s.LineItem.UnitAmount)
	assert.Equal(t, "Vinyasa flow · 60 min", s.LineItem.Description)

	assert.Equal(t, map[string]string{
		domain.MetaType:      "drop_in",
		domain.MetaSellerID:  f.sellerID,
		domain.MetaServiceID: serviceID,
		domain.MetaBuyerID:   f.buyerID,
		domain.MetaSource:    domain.MetadataSource,
	}, s.Metadata)
}

func TestCheckout_PassCarriesBookingFields(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(func(o *domain.ServiceOffering) {
		o.Category = domain.CategoryPack
		o.PriceCents = 9999
	})

	req := f.request(serviceID)
	req.Date = "2026-11-02"
	req.SlotID = uuid.NewString()

	result, err := f.svc.CreateCheckout(context.Background(), f.buyerID, req)
	require.NoError(t, err)
	assert.Equal(t, domain.ModePass, result.Intent.Mode)
	assert.Equal(t, int64(1500), result.Intent.CommissionCents)

	md := f.gateway.Sessions()[0].Metadata
	assert.Equal(t, "pass", md[domain.MetaType])
	assert.Equal(t, "2026-11-02", md[domain.MetaDate])
	assert.Equal(t, req.SlotID, md[domain.MetaSlotID])

	parsed, err := domain.ParseMetadata(md)
	require.NoError(t, err)
	assert.Equal(t, result.Intent.Metadata, parsed)
}

func TestCheckout_SellerWithoutPayoutMakesNoProviderCalls(t *testing.T) {
	f := newFixture()
	f.profiles.sellers[f.sellerID].PayoutAccountID = nil
	serviceID := f.addService(nil)

	_, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
	requireKind(t, err, domain.KindFailedPrecondition)
	assert.Empty(t, f.gateway.Calls())
}

func TestCheckout_SubscriptionFirstTimeBuyer(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(func(o *domain.ServiceOffering) {
		o.Category = domain.CategoryMembership
		o.PriceCents = 4900
		o.BillingPeriod = domain.PeriodYearly
		o.TrialDays = 7
	})

	result, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSubscription, result.Intent.Mode)

	assert.Equal(t, []string{
		payment.OpCreateCustomer,
		payment.OpCreateRecurringPrice,
		payment.OpCreateCheckoutSession,
	}, creations(f.gateway.Calls()))

	s := f.gateway.Sessions()[0]
	assert.Equal(t, payment.SessionModeSubscription, s.Mode)
	assert.Equal(t, domain.SubscriptionFeePercent, s.ApplicationFeePercent)
	assert.Zero(t, s.ApplicationFeeAmount)
	assert.Equal(t, int64(7), s.TrialDays)
	assert.NotEmpty(t, s.PriceID)
	assert.Nil(t, s.LineItem)
	assert.Equal(t, map[string]string{
		domain.MetaSubscriptionType: domain.SubscriptionTypeBusiness,
		domain.MetaSellerID:         f.sellerID,
		domain.MetaServiceID:        serviceID,
		domain.MetaBuyerID:          f.buyerID,
		domain.MetaPeriod:           "yearly",
	}, s.Metadata)

	assert.NotEmpty(t, f.profiles.customerOf(f.buyerID))
	assert.Equal(t, s.CustomerID, f.profiles.customerOf(f.buyerID))
}

func TestCheckout_SubscriptionReusesPriceAndCustomer(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(func(o *domain.ServiceOffering) {
		o.IsSubscription = true
		o.BillingPeriod = ""
	})

	for i := 0; i < 2; i++ {
		_, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.gateway.CallCount(payment.OpCreateCustomer))
	assert.Equal(t, 1, f.gateway.CallCount(payment.OpCreateRecurringPrice))
	assert.Equal(t, 2, f.gateway.CallCount(payment.OpCreateCheckoutSession))

	sessions := f.gateway.Sessions()
	assert.Equal(t, sessions[0].PriceID, sessions[1].PriceID)
	assert.Equal(t, sessions[0].CustomerID, sessions[1].CustomerID)
	assert.Equal(t, "monthly", sessions[0].Metadata[domain.MetaPeriod])
}

func TestCheckout_RateLimitStopsSixthAttempt(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(nil)

	for i := 0; i < CheckoutRateLimit; i++ {
		_, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
		require.NoError(t, err, "attempt %d", i+1)
	}

	storeCalls := f.profiles.callCount() + f.offerings.callCount()
	providerCalls := len(f.gateway.Calls())

	_, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
	requireKind(t, err, domain.KindRateLimited)
	assert.Equal(t, storeCalls, f.profiles.callCount()+f.offerings.callCount())
	assert.Equal(t, providerCalls, len(f.gateway.Calls()))
}

func TestCheckout_RateLimitStoreFailsClosed(t *testing.T) {
	f := newFixture()
	f.limiter.err = errors.New("connection refused")
	serviceID := f.addService(nil)

	_, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
	requireKind(t, err, domain.KindRateLimited)
	assert.Zero(t, f.profiles.callCount())
}

func TestCheckout_TransientFailuresAreRetried(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(nil)
	f.gateway.FailNext(payment.OpCreateCheckoutSession, payment.ErrTransient, payment.ErrTransient)

	result, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)

	sessions := f.gateway.Sessions()
	require.Len(t, sessions, 3)
	assert.Equal(t, sessions[0].IdempotencyKey, sessions[2].IdempotencyKey)
	assert.Equal(t, sessions[0].ExpiresAt, sessions[2].ExpiresAt, "retries resend identical parameters")
}

func TestCheckout_ExpiryIsSetWhenTheSessionIsCreated(t *testing.T) {
	f := newFixture()
	f.now = time.Date(2026, 10, 18, 12, 0, 0, 400_000_000, time.UTC)
	serviceID := f.addService(func(o *domain.ServiceOffering) {
		o.Category = domain.CategoryMembership
		o.IsSubscription = true
		o.BillingPeriod = domain.PeriodMonthly
	})

	// Customer and price lookups take time before the session call goes out.
	callAt := f.now.Add(3*time.Second + 200*time.Millisecond)
	f.sessions.now = func() time.Time { return callAt }

	result, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
	require.NoError(t, err)

	sessions := f.gateway.Sessions()
	require.Len(t, sessions, 1)
	expiresAt := sessions[0].ExpiresAt
	assert.False(t, expiresAt.Before(callAt.Add(SessionTTL)), "expires_at must be at least %s after the create call", SessionTTL)
	assert.Zero(t, expiresAt.Nanosecond(), "whole seconds")
	assert.Equal(t, expiresAt.Unix(), result.Response().ExpiresAt)
	assert.Equal(t, expiresAt, result.Intent.ExpiresAt)
}

func TestSessionExpiry_RoundsUp(t *testing.T) {
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(SessionTTL+sessionExpiryMargin), sessionExpiry(base))
	assert.Equal(t, base.Add(SessionTTL+sessionExpiryMargin+time.Second), sessionExpiry(base.Add(time.Millisecond)))
	assert.Equal(t, base.Add(SessionTTL+sessionExpiryMargin+time.Second), sessionExpiry(base.Add(999*time.Millisecond)))
}

func TestCheckout_RetryBudgetExhausted(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(nil)
	f.gateway.FailNext(payment.OpCreateCheckoutSession, payment.ErrTransient, payment.ErrTransient, payment.ErrTransient)

	_, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
	requireKind(t, err, domain.KindUpstreamUnavailable)
	assert.Equal(t, 3, f.gateway.CallCount(payment.OpCreateCheckoutSession))
}

func TestCheckout_PermanentFailureIsNotRetried(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(nil)
	f.gateway.FailNext(payment.OpCreateCheckoutSession, fmt.Errorf("%w: invalid destination", payment.ErrPermanent))

	_, err := f.svc.CreateCheckout(context.Background(), f.buyerID, f.request(serviceID))
	requireKind(t, err, domain.KindUpstreamUnavailable)
	assert.Equal(t, 1, f.gateway.CallCount(payment.OpCreateCheckoutSession))

	assert.False(t, errors.Is(err, payment.ErrPermanent), "provider errors must not escape the resilience boundary")
}

func TestCheckout_MalformedSlotRejectedBeforeAnyCall(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(nil)

	req := f.request(serviceID)
	req.SlotID = "slot-7"

	_, err := f.svc.CreateCheckout(context.Background(), f.buyerID, req)
	requireKind(t, err, domain.KindInvalidArgument)
	assert.Zero(t, f.profiles.callCount())
	assert.Zero(t, f.offerings.callCount())
	assert.Empty(t, f.gateway.Calls())
}

func TestCheckout_Preconditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture) *domain.CheckoutRequest
		want  domain.ErrorKind
	}{
		{
			name: "unauthenticated",
			setup: func(f *fixture) *domain.CheckoutRequest {
				f.buyerID = ""
				return f.request(f.addService(nil))
			},
			want: domain.KindUnauthorized,
		},
		{
			name: "unknown seller",
			setup: func(f *fixture) *domain.CheckoutRequest {
				req := f.request(f.addService(nil))
				req.BusinessID = uuid.NewString()
				return req
			},
			want: domain.KindNotFound,
		},
		{
			name: "unknown service",
			setup: func(f *fixture) *domain.CheckoutRequest {
				return f.request(uuid.NewString())
			},
			want: domain.KindNotFound,
		},
		{
			name: "service owned by another seller",
			setup: func(f *fixture) *domain.CheckoutRequest {
				return f.request(f.addService(func(o *domain.ServiceOffering) { o.SellerID = uuid.NewString() }))
			},
			want: domain.KindNotFound,
		},
		{
			name: "inactive drop-in",
			setup: func(f *fixture) *domain.CheckoutRequest {
				return f.request(f.addService(func(o *domain.ServiceOffering) { o.IsActive = false }))
			},
			want: domain.KindFailedPrecondition,
		},
		{
			name: "inactive membership",
			setup: func(f *fixture) *domain.CheckoutRequest {
				return f.request(f.addService(func(o *domain.ServiceOffering) {
					o.IsActive = false
					o.Category = domain.CategoryMembership
				}))
			},
			want: domain.KindFailedPrecondition,
		},
		{
			name: "free service",
			setup: func(f *fixture) *domain.CheckoutRequest {
				return f.request(f.addService(func(o *domain.ServiceOffering) { o.PriceCents = 0 }))
			},
			want: domain.KindFailedPrecondition,
		},
		{
			name: "corrupt billing period",
			setup: func(f *fixture) *domain.CheckoutRequest {
				return f.request(f.addService(func(o *domain.ServiceOffering) {
					o.IsSubscription = true
					o.BillingPeriod = "fortnightly"
				}))
			},
			want: domain.KindFailedPrecondition,
		},
		{
			name: "own service",
			setup: func(f *fixture) *domain.CheckoutRequest {
				req := f.request(f.addService(nil))
				f.buyerID = f.sellerID
				return req
			},
			want: domain.KindInvalidArgument,
		},
		{
			name: "bad date",
			setup: func(f *fixture) *domain.CheckoutRequest {
				req := f.request(f.addService(nil))
				req.Date = "02/11/2026"
				return req
			},
			want: domain.KindInvalidArgument,
		},
		{
			name: "missing profile",
			setup: func(f *fixture) *domain.CheckoutRequest {
				delete(f.profiles.buyers, f.buyerID)
				return f.request(f.addService(nil))
			},
			want: domain.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := tt.setup(f)

			_, err := f.svc.CreateCheckout(context.Background(), f.buyerID, req)
			requireKind(t, err, tt.want)
			assert.Empty(t, f.gateway.Calls())
		})
	}
}

func TestCheckout_TimeoutSurfacesAsUpstreamUnavailable(t *testing.T) {
	f := newFixture()
	serviceID := f.addService(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.gateway.FailNext(payment.OpFindCustomer, context.Canceled)

	_, err := f.svc.CreateCheckout(ctx, f.buyerID, f.request(serviceID))
	requireKind(t, err, domain.KindUpstreamUnavailable)
}
