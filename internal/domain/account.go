package domain

import "time"

// BuyerAccount is the purchasing side of a profile. StripeCustomerID stays nil until
// the first checkout resolves a billing customer for it.
type BuyerAccount struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName"`
	StripeCustomerID *string   `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HasCustomer reports whether a billing customer is already mapped to the buyer.
func (b *BuyerAccount) HasCustomer() bool {
	return b.StripeCustomerID != nil && *b.StripeCustomerID != ""
}

// SellerAccount is a business profile that sells services. PayoutAccountID is nil
// until the business completes processor onboarding.
type SellerAccount struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"displayName"`
	PayoutAccountID *string `json:"-"`
}

// CanReceivePayouts reports whether transfers can be routed to the seller.
func (s *SellerAccount) CanReceivePayouts() bool {
	return s.PayoutAccountID != nil && *s.PayoutAccountID != ""
}

// JWTClaims represents the JWT payload issued by the auth service.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}
