package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation tags for Gateway methods, used in metrics, spans and MockGateway call logs.
const (
	OpFindCustomer          = "find_customer"
	OpCreateCustomer        = "create_customer"
	OpFindPrice             = "find_price"
	OpCreateRecurringPrice  = "create_recurring_price"
	OpCreateCheckoutSession = "create_checkout_session"
)

// MockGateway is an in-memory gateway for local development and tests. It records
// every call and can be scripted to fail.
type MockGateway struct {
	mu        sync.Mutex
	calls     []string
	failures  map[string][]error
	customers map[string]*Customer
	prices    map[string]*Price
	sessions  []SessionParams
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		failures:  make(map[string][]error),
		customers: make(map[string]*Customer),
		prices:    make(map[string]*Price),
	}
}

// FailNext queues errors returned by the next calls of op, one per call.
func (g *MockGateway) FailNext(op string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = append(g.failures[op], errs...)
}

// SeedCustomer registers an existing provider-side customer for userID.
func (g *MockGateway) SeedCustomer(userID string, c *Customer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers[userID] = c
}

// Calls returns the operations invoked so far, in order.
func (g *MockGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// CallCount returns how many times op was invoked.
func (g *MockGateway) CallCount(op string) int {
	n := 0
	for _, c := range g.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

// Sessions returns the parameters of every session creation attempt.
func (g *MockGateway) Sessions() []SessionParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SessionParams(nil), g.sessions...)
}

func (g *MockGateway) record(op string) error {
	g.calls = append(g.calls, op)
	if q := g.failures[op]; len(q) > 0 {
		g.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (g *MockGateway) FindCustomer(ctx context.Context, userID, email string) (*Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpFindCustomer); err != nil {
		return nil, err
	}
	return g.customers[userID], nil
}

func (g *MockGateway) CreateCustomer(ctx context.Context, p CustomerParams) (*Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpCreateCustomer); err != nil {
		return nil, err
	}
	// Same idempotency semantics as the provider: one customer per user.
	if c, ok := g.customers[p.UserID]; ok {
		return c, nil
	}
	c := &Customer{ID: "cus_" + shortID(), Email: p.Email}
	g.customers[p.UserID] = c
	return c, nil
}

func (g *MockGateway) FindPrice(ctx context.Context, lookupKey string) (*Price, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpFindPrice); err != nil {
		return nil, err
	}
	return g.prices[lookupKey], nil
}

func (g *MockGateway) CreateRecurringPrice(ctx context.Context, p RecurringPriceParams) (*Price, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpCreateRecurringPrice); err != nil {
		return nil, err
	}
	price := &Price{ID: "price_" + shortID(), UnitAmount: p.UnitAmount, Currency: p.Currency, Interval: p.Interval}
	g.prices[p.LookupKey] = price
	return price, nil
}

func (g *MockGateway) CreateCheckoutSession(ctx context.Context, p SessionParams) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, p)
	if err := g.record(OpCreateCheckoutSession); err != nil {
		return nil, err
	}
	id := "cs_test_" + shortID()
	return &Session{
		ID:        id,
		URL:       "https://checkout.example.com/pay/" + id,
		ExpiresAt: time.Unix(p.ExpiresAt.Unix(), 0),
	}, nil
}

// ParseWebhook decodes an unsigned JSON Event. Development only.
func (g *MockGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	return &evt, nil
}

func shortID() string {
	return uuid.New().String()[:8]
}
