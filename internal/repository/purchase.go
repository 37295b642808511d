package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smuppy/backend/internal/domain"
)

// PurchaseRepository stores purchases materialized by the payment webhook.
type PurchaseRepository struct {
	db *pgxpool.Pool
}

func NewPurchaseRepository(db *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create inserts p unless a purchase for the same provider session exists. It reports
// whether a row was written.
func (r *PurchaseRepository) Create(ctx context.Context, p *domain.Purchase) (bool, error) {
	query := `
		INSERT INTO purchases (
			id, provider_session_id, mode, buyer_id, seller_id, service_id,
			amount_total, currency, status, booking_date, slot_id, period,
			customer_id, subscription_id, payment_intent_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''), $16)
		ON CONFLICT (provider_session_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		p.ID, p.ProviderSessionID, p.Mode, p.BuyerID, p.SellerID, p.ServiceID,
		p.AmountTotal, p.Currency, p.Status, p.BookingDate, p.SlotID, p.Period,
		p.CustomerID, p.SubscriptionID, p.PaymentIntentID, p.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create purchase: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FindBySessionID returns the purchase created for a provider checkout session.
func (r *PurchaseRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.Purchase, error) {
	query := `
		SELECT id, provider_session_id, mode, buyer_id, seller_id, service_id,
		       amount_total, currency, status, booking_date::text, slot_id::text, period,
		       COALESCE(customer_id, ''), COALESCE(subscription_id, ''),
		       COALESCE(payment_intent_id, ''), created_at
		FROM purchases WHERE provider_session_id = $1
	`
	var p domain.Purchase
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&p.ID, &p.ProviderSessionID, &p.Mode, &p.BuyerID, &p.SellerID, &p.ServiceID,
		&p.AmountTotal, &p.Currency, &p.Status, &p.BookingDate, &p.SlotID, &p.Period,
		&p.CustomerID, &p.SubscriptionID, &p.PaymentIntentID, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	return &p, nil
}
