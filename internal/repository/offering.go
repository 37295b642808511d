package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smuppy/backend/internal/domain"
)

// OfferingRepository reads business services. Checkout never writes them.
type OfferingRepository struct {
	db *pgxpool.Pool
}

func NewOfferingRepository(db *pgxpool.Pool) *OfferingRepository {
	return &OfferingRepository{db: db}
}

// FindByID returns a service by ID.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*domain.ServiceOffering, error) {
	query := `
		SELECT id, business_id, name, description, category, price_cents, is_active,
		       is_subscription, COALESCE(billing_period, ''), trial_days,
		       COALESCE(max_capacity, 0), COALESCE(duration_minutes, 0)
		FROM business_services WHERE id = $1
	`
	var (
		o      domain.ServiceOffering
		period string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.SellerID, &o.Name, &o.Description, &o.Category, &o.PriceCents, &o.IsActive,
		&o.IsSubscription, &period, &o.TrialDays,
		&o.MaxCapacity, &o.DurationMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	o.BillingPeriod = domain.BillingPeriod(period)
	return &o, nil
}
