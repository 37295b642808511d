package service

import (
	"context"
	"time"

	"github.com/smuppy/backend/internal/domain"
	"github.com/smuppy/backend/internal/metrics"
	"go.uber.org/zap"
)

// CheckoutOptions carries the deployment-specific parts of a checkout.
type CheckoutOptions struct {
	SuccessURL string
	CancelURL  string
	// Timeout bounds the whole pipeline. Zero leaves the caller's deadline alone.
	Timeout time.Duration
}

// CheckoutService runs the checkout pipeline: guard, load and check every party,
// resolve the billing customer, price the purchase and create the hosted session.
type CheckoutService struct {
	guard     *RequestGuard
	profiles  ProfileStore
	offerings OfferingStore
	customers *CustomerResolver
	sessions  *SessionBuilder
	metrics   metrics.Recorder
	logger    *zap.Logger
	opts      CheckoutOptions
}

func NewCheckoutService(
	guard *RequestGuard,
	profiles ProfileStore,
	offerings OfferingStore,
	customers *CustomerResolver,
	sessions *SessionBuilder,
	rec metrics.Recorder,
	logger *zap.Logger,
	opts CheckoutOptions,
) *CheckoutService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &CheckoutService{
		guard:     guard,
		profiles:  profiles,
		offerings: offerings,
		customers: customers,
		sessions:  sessions,
		metrics:   rec,
		logger:    logger,
		opts:      opts,
	}
}

// checkoutParties is everything loaded from the store for one request.
type checkoutParties struct {
	buyer    *domain.BuyerAccount
	seller   *domain.SellerAccount
	offering *domain.ServiceOffering
	mode     domain.PurchaseMode
	period   domain.BillingPeriod
}

// CreateCheckout starts a checkout for userID. Nothing is persisted apart from the
// buyer's customer mapping; the purchase itself is written by the webhook.
func (s *CheckoutService) CreateCheckout(ctx context.Context, userID string, req *domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	result, mode, err := s.run(ctx, userID, req)
	if err != nil {
		s.metrics.RecordCheckout(string(mode), string(domain.KindOf(err)))
		if appErr, ok := domain.AsAppError(err); !ok || appErr.Kind == domain.KindInternal {
			s.logger.Error("checkout failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.metrics.RecordCheckout(string(mode), "ok")
	s.logger.Info("checkout session created",
		zap.String("session_id", result.SessionID),
		zap.String("mode", string(mode)),
		zap.String("buyer_id", userID),
		zap.String("seller_id", result.Intent.Metadata.SellerID),
		zap.String("service_id", result.Intent.Metadata.ServiceID),
		zap.Int64("price_cents", result.Intent.PriceCents),
		zap.Int64("commission_cents", result.Intent.CommissionCents),
	)
	return result, nil
}

func (s *CheckoutService) run(ctx context.Context, userID string, req *domain.CheckoutRequest) (*domain.CheckoutResult, domain.PurchaseMode, error) {
	if err := s.guard.Check(ctx, userID, req); err != nil {
		return nil, "", err
	}

	p, err := s.loadParties(ctx, userID, req)
	if err != nil {
		return nil, "", err
	}

	customerID, err := s.customers.Resolve(ctx, p.buyer)
	if err != nil {
		return nil, p.mode, err
	}

	intent := s.buildIntent(userID, req, p)
	if err := intent.Metadata.Validate(); err != nil {
		return nil, p.mode, domain.ErrInternal("failed to build reconciliation metadata", err)
	}

	session, err := s.sessions.Build(ctx, intent, customerID, p.seller, p.offering)
	if err != nil {
		return nil, p.mode, err
	}

	expiresAt := session.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = intent.ExpiresAt
	}
	return &domain.CheckoutResult{
		Intent:      intent,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		ExpiresAt:   expiresAt,
	}, p.mode, nil
}

// loadParties reads seller, service and buyer and checks every precondition, so a
// request that cannot succeed never reaches the provider.
func (s *CheckoutService) loadParties(ctx context.Context, userID string, req *domain.CheckoutRequest) (*checkoutParties, error) {
	seller, err := s.profiles.FindSeller(ctx, req.BusinessID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load business", err)
	}
	if seller == nil {
		return nil, domain.ErrNotFound("business not found")
	}

	offering, err := s.offerings.FindByID(ctx, req.ServiceID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load service", err)
	}
	if offering == nil || offering.SellerID != seller.ID {
		return nil, domain.ErrNotFound("service not found")
	}
	if !offering.IsActive {
		return nil, domain.ErrFailedPrecondition("service is not available for purchase")
	}
	if offering.PriceCents <= 0 {
		return nil, domain.ErrFailedPrecondition("service has no price")
	}
	if !seller.CanReceivePayouts() {
		return nil, domain.ErrFailedPrecondition("business cannot accept payments yet")
	}

	p := &checkoutParties{
		seller:   seller,
		offering: offering,
		mode:     domain.ResolveMode(offering),
	}
	if p.mode.IsRecurring() {
		period, err := domain.ParseBillingPeriod(string(offering.BillingPeriod))
		if err != nil {
			return nil, domain.ErrFailedPrecondition("service has an invalid billing period")
		}
		p.period = period
	}

	buyer, err := s.profiles.FindBuyer(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load profile", err)
	}
	if buyer == nil {
		return nil, domain.ErrNotFound("profile not found")
	}
	p.buyer = buyer
	return p, nil
}

func (s *CheckoutService) buildIntent(userID string, req *domain.CheckoutRequest, p *checkoutParties) *domain.CheckoutIntent {
	md := domain.ReconciliationMetadata{
		Mode:      p.mode,
		SellerID:  p.seller.ID,
		ServiceID: p.offering.ID,
		BuyerID:   userID,
	}
	if p.mode.IsRecurring() {
		md.Period = p.period
	} else {
		md.Source = domain.MetadataSource
		md.Date = req.Date
		md.SlotID = req.SlotID
	}

	return &domain.CheckoutIntent{
		Mode:            p.mode,
		PriceCents:      p.offering.PriceCents,
		CommissionCents: domain.Commission(p.offering.PriceCents),
		ProductName:     p.offering.Name,
		Description:     p.offering.LineItemDescription(),
		SuccessURL:      s.opts.SuccessURL,
		CancelURL:       s.opts.CancelURL,
		Metadata:        md,
	}
}
