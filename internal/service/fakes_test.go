package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smuppy/backend/internal/domain"
	"github.com/smuppy/backend/pkg/payment"
	"go.uber.org/zap"
)

type fakeProfiles struct {
	mu      sync.Mutex
	buyers  map[string]*domain.BuyerAccount
	sellers map[string]*domain.SellerAccount
	calls   int

	setErr error
	// raceWith simulates a concurrent request that maps the buyer just before us.
	raceWith string
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		buyers:  make(map[string]*domain.BuyerAccount),
		sellers: make(map[string]*domain.SellerAccount),
	}
}

func (f *fakeProfiles) FindBuyer(ctx context.Context, id string) (*domain.BuyerAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	b, ok := f.buyers[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeProfiles) FindSeller(ctx context.Context, id string) (*domain.SellerAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	s, ok := f.sellers[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeProfiles) SetStripeCustomerID(ctx context.Context, buyerID, customerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.setErr != nil {
		return false, f.setErr
	}
	b, ok := f.buyers[buyerID]
	if !ok {
		return false, nil
	}
	if f.raceWith != "" && !b.HasCustomer() {
		winner := f.raceWith
		b.StripeCustomerID = &winner
	}
	if b.HasCustomer() {
		return false, nil
	}
	b.StripeCustomerID = &customerID
	return true, nil
}

func (f *fakeProfiles) customerOf(buyerID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b := f.buyers[buyerID]; b != nil && b.StripeCustomerID != nil {
		return *b.StripeCustomerID
	}
	return ""
}

func (f *fakeProfiles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeOfferings struct {
	mu        sync.Mutex
	offerings map[string]*domain.ServiceOffering
	calls     int
}

func (f *fakeOfferings) FindByID(ctx context.Context, id string) (*domain.ServiceOffering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	o, ok := f.offerings[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOfferings) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeLimiter counts per key and never resets within a test.
type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}

type fakePurchases struct {
	mu    sync.Mutex
	rows  map[string]*domain.Purchase
	err   error
	calls int
}

func (f *fakePurchases) Create(ctx context.Context, p *domain.Purchase) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if f.rows == nil {
		f.rows = make(map[string]*domain.Purchase)
	}
	if _, ok := f.rows[p.ProviderSessionID]; ok {
		return false, nil
	}
	f.rows[p.ProviderSessionID] = p
	return true, nil
}

// fixture is a checkout pipeline wired to fakes with one buyer, one seller and no
// services.
type fixture struct {
	profiles  *fakeProfiles
	offerings *fakeOfferings
	limiter   *fakeLimiter
	gateway   *payment.MockGateway
	sessions  *SessionBuilder
	svc       *CheckoutService

	buyerID  string
	sellerID string
	now      time.Time
}

func newFixture() *fixture {
	f := &fixture{
		profiles:  newFakeProfiles(),
		offerings: &fakeOfferings{offerings: make(map[string]*domain.ServiceOffering)},
		limiter:   &fakeLimiter{},
		gateway:   payment.NewMockGateway(),
		buyerID:   uuid.NewString(),
		sellerID:  uuid.NewString(),
		now:       time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}

	payout := "acct_seller"
	f.profiles.buyers[f.buyerID] = &domain.BuyerAccount{ID: f.buyerID, Email: "buyer@example.com", DisplayName: "Buyer"}
	f.profiles.sellers[f.sellerID] = &domain.SellerAccount{ID: f.sellerID, DisplayName: "Studio", PayoutAccountID: &payout}

	logger := zap.NewNop()
	res := NewResilience(RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}, logger, nil)
	f.sessions = NewSessionBuilder(f.gateway, res, "EUR")
	f.sessions.now = func() time.Time { return f.now }
	f.svc = NewCheckoutService(
		NewRequestGuard(f.limiter, logger),
		f.profiles,
		f.offerings,
		NewCustomerResolver(f.profiles, f.gateway, res, logger),
		f.sessions,
		nil,
		logger,
		CheckoutOptions{SuccessURL: "smuppy://checkout/success", CancelURL: "smuppy://checkout/cancel"},
	)
	return f
}

func (f *fixture) addService(mutate func(o *domain.ServiceOffering)) string {
	o := &domain.ServiceOffering{
		ID:              uuid.NewString(),
		SellerID:        f.sellerID,
		Name:            "Morning Yoga",
		Description:     "Vinyasa flow",
		Category:        domain.CategoryDropIn,
		PriceCents:      2000,
		IsActive:        true,
		DurationMinutes: 60,
	}
	if mutate != nil {
		mutate(o)
	}
	f.offerings.offerings[o.ID] = o
	return o.ID
}

func (f *fixture) request(serviceID string) *domain.CheckoutRequest {
	return &domain.CheckoutRequest{BusinessID: f.sellerID, ServiceID: serviceID}
}

// creations filters the recorded provider calls down to the ones that create objects.
func creations(calls []string) []string {
	var out []string
	for _, c := range calls {
		switch c {
		case payment.OpCreateCustomer, payment.OpCreateRecurringPrice, payment.OpCreateCheckoutSession:
			out = append(out, c)
		}
	}
	return out
}
