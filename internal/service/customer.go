package service

import (
	"context"

	"github.com/smuppy/backend/internal/domain"
	"github.com/smuppy/backend/pkg/payment"
	"go.uber.org/zap"
)

// CustomerResolver maps a buyer to exactly one provider customer.
type CustomerResolver struct {
	profiles   ProfileStore
	gateway    payment.Gateway
	resilience *Resilience
	logger     *zap.Logger
}

func NewCustomerResolver(profiles ProfileStore, gateway payment.Gateway, resilience *Resilience, logger *zap.Logger) *CustomerResolver {
	return &CustomerResolver{
		profiles:   profiles,
		gateway:    gateway,
		resilience: resilience,
		logger:     logger,
	}
}

// Resolve returns the buyer's provider customer id, creating and persisting one on
// first use. Concurrent first purchases converge on a single id: the provider create
// is keyed by the buyer id and the mapping is only written while empty.
func (r *CustomerResolver) Resolve(ctx context.Context, buyer *domain.BuyerAccount) (string, error) {
	if buyer.HasCustomer() {
		return *buyer.StripeCustomerID, nil
	}

	// An earlier attempt may have created the customer and then failed to persist it.
	existing, err := call(ctx, r.resilience, payment.OpFindCustomer, func(ctx context.Context) (*payment.Customer, error) {
		return r.gateway.FindCustomer(ctx, buyer.ID, buyer.Email)
	})
	if err != nil {
		return "", err
	}

	customerID := ""
	if existing != nil {
		customerID = existing.ID
		r.logger.Info("reusing unmapped provider customer",
			zap.String("buyer_id", buyer.ID),
			zap.String("customer_id", customerID),
		)
	} else {
		created, err := call(ctx, r.resilience, payment.OpCreateCustomer, func(ctx context.Context) (*payment.Customer, error) {
			return r.gateway.CreateCustomer(ctx, payment.CustomerParams{
				UserID:         buyer.ID,
				Email:          buyer.Email,
				Name:           buyer.DisplayName,
				IdempotencyKey: "customer-" + buyer.ID,
			})
		})
		if err != nil {
			return "", err
		}
		customerID = created.ID
	}

	return r.persist(ctx, buyer, customerID), nil
}

// persist stores customerID on the buyer and returns the id the rest of the request
// must use. Persistence failures never fail the checkout.
func (r *CustomerResolver) persist(ctx context.Context, buyer *domain.BuyerAccount, customerID string) string {
	updated, err := r.profiles.SetStripeCustomerID(ctx, buyer.ID, customerID)
	if err != nil {
		r.logger.Warn("failed to persist provider customer, mapping left empty",
			zap.String("buyer_id", buyer.ID),
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return customerID
	}
	if updated {
		buyer.StripeCustomerID = &customerID
		return customerID
	}

	// Another request mapped the buyer first; the stored id wins.
	current, err := r.profiles.FindBuyer(ctx, buyer.ID)
	if err != nil || current == nil || !current.HasCustomer() {
		r.logger.Warn("customer mapping changed concurrently but could not be re-read",
			zap.String("buyer_id", buyer.ID),
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return customerID
	}

	stored := *current.StripeCustomerID
	if stored != customerID {
		r.logger.Warn("orphaned provider customer",
			zap.String("buyer_id", buyer.ID),
			zap.String("orphan_customer_id", customerID),
			zap.String("customer_id", stored),
		)
	}
	buyer.StripeCustomerID = &stored
	return stored
}
