package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smuppy/backend/internal/domain"
)

// ProfileRepository reads buyer and seller views of the profiles table and owns the
// buyer's billing customer mapping.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindBuyer returns the buyer view of a profile.
func (r *ProfileRepository) FindBuyer(ctx context.Context, id string) (*domain.BuyerAccount, error) {
	query := `
		SELECT id, email, display_name, stripe_customer_id, created_at
		FROM profiles WHERE id = $1
	`
	var b domain.BuyerAccount
	err := r.db.QueryRow(ctx, query, id).Scan(&b.ID, &b.Email, &b.DisplayName, &b.StripeCustomerID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find buyer: %w", err)
	}
	return &b, nil
}

// FindSeller returns the seller view of a profile.
func (r *ProfileRepository) FindSeller(ctx context.Context, id string) (*domain.SellerAccount, error) {
	query := `SELECT id, display_name, stripe_account_id FROM profiles WHERE id = $1`

	var s domain.SellerAccount
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.DisplayName, &s.PayoutAccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find seller: %w", err)
	}
	return &s, nil
}

// SetStripeCustomerID stores customerID only if the buyer has none yet. It reports
// whether the row was updated; false means another request got there first.
func (r *ProfileRepository) SetStripeCustomerID(ctx context.Context, buyerID, customerID string) (bool, error) {
	query := `
		UPDATE profiles SET stripe_customer_id = $1, updated_at = NOW()
		WHERE id = $2 AND stripe_customer_id IS NULL
	`
	tag, err := r.db.Exec(ctx, query, customerID, buyerID)
	if err != nil {
		return false, fmt.Errorf("failed to set stripe customer id: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
