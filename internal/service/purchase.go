package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smuppy/backend/internal/domain"
	"github.com/smuppy/backend/internal/metrics"
	"github.com/smuppy/backend/pkg/payment"
	"go.uber.org/zap"
)

// Webhook outcomes, also used as metric labels.
const (
	WebhookRecorded  = "recorded"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookMalformed = "malformed"
)

// PurchaseService materializes purchases from provider webhooks using the metadata the
// checkout attached to the session.
type PurchaseService struct {
	gateway   payment.Gateway
	purchases PurchaseStore
	metrics   metrics.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewPurchaseService(gateway payment.Gateway, purchases PurchaseStore, rec metrics.Recorder, logger *zap.Logger) *PurchaseService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &PurchaseService{
		gateway:   gateway,
		purchases: purchases,
		metrics:   rec,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleWebhook verifies and processes one provider event. It returns an error only
// when the provider should redeliver: a bad signature or a storage failure. Events
// that can never be processed are acknowledged and logged.
func (s *PurchaseService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("rejected webhook", zap.Error(err))
		return "", domain.ErrBadRequest("invalid webhook signature")
	}

	outcome, err := s.process(ctx, evt)
	s.metrics.RecordWebhook(evt.Type, outcomeLabel(outcome, err))
	return outcome, err
}

func (s *PurchaseService) process(ctx context.Context, evt *payment.Event) (string, error) {
	if evt.Type != payment.EventCheckoutCompleted {
		s.logger.Debug("webhook event ignored", zap.String("event_id", evt.ID), zap.String("type", evt.Type))
		return WebhookIgnored, nil
	}

	cs := evt.Session
	if cs == nil {
		s.logger.Error("checkout event without session", zap.String("event_id", evt.ID))
		return WebhookMalformed, nil
	}

	md, err := domain.ParseMetadata(cs.Metadata)
	if err != nil {
		s.logger.Error("checkout session carries malformed metadata",
			zap.String("event_id", evt.ID),
			zap.String("session_id", cs.ID),
			zap.Error(err),
		)
		return WebhookMalformed, nil
	}

	p := &domain.Purchase{
		ID:                uuid.New().String(),
		ProviderSessionID: cs.ID,
		Mode:              md.Mode,
		BuyerID:           md.BuyerID,
		SellerID:          md.SellerID,
		ServiceID:         md.ServiceID,
		AmountTotal:       cs.AmountTotal,
		Currency:          strings.ToLower(cs.Currency),
		Status:            domain.PurchaseStatusPending,
		CustomerID:        cs.CustomerID,
		SubscriptionID:    cs.SubscriptionID,
		PaymentIntentID:   cs.PaymentIntentID,
		CreatedAt:         s.now(),
	}
	if cs.IsPaid() {
		p.Status = domain.PurchaseStatusPaid
	}
	if md.Date != "" {
		p.BookingDate = &md.Date
	}
	if md.SlotID != "" {
		p.SlotID = &md.SlotID
	}
	if md.Mode.IsRecurring() {
		p.Period = &md.Period
	}

	created, err := s.purchases.Create(ctx, p)
	if err != nil {
		return "", domain.ErrInternal("failed to record purchase", err)
	}
	if !created {
		s.logger.Info("purchase already recorded", zap.String("session_id", cs.ID))
		return WebhookDuplicate, nil
	}

	s.logger.Info("purchase recorded",
		zap.String("session_id", cs.ID),
		zap.String("mode", string(p.Mode)),
		zap.String("status", p.Status),
		zap.String("buyer_id", p.BuyerID),
		zap.String("service_id", p.ServiceID),
	)
	return WebhookRecorded, nil
}

func outcomeLabel(outcome string, err error) string {
	if err != nil {
		return "error"
	}
	return outcome
}
