package service

import (
	"context"
	"time"

	"github.com/smuppy/backend/internal/domain"
)

// ProfileStore reads buyer and seller accounts and owns the buyer's customer mapping.
type ProfileStore interface {
	FindBuyer(ctx context.Context, id string) (*domain.BuyerAccount, error)
	FindSeller(ctx context.Context, id string) (*domain.SellerAccount, error)
	// SetStripeCustomerID writes the mapping only when none exists and reports whether
	// it did.
	SetStripeCustomerID(ctx context.Context, buyerID, customerID string) (bool, error)
}

// OfferingStore reads business services.
type OfferingStore interface {
	FindByID(ctx context.Context, id string) (*domain.ServiceOffering, error)
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// PurchaseStore persists purchases exactly once per provider session.
type PurchaseStore interface {
	Create(ctx context.Context, p *domain.Purchase) (bool, error)
}
