package domain

import "time"

// Purchase status values written by the webhook consumer.
const (
	PurchaseStatusPending = "pending"
	PurchaseStatusPaid    = "paid"
)

// Purchase is the row materialized from a completed checkout session. It is keyed by
// the provider session id so replays of the same event insert nothing.
type Purchase struct {
	ID                string
	ProviderSessionID string
	Mode              PurchaseMode
	BuyerID           string
	SellerID          string
	ServiceID         string
	AmountTotal       int64
	Currency          string
	Status            string
	BookingDate       *string
	SlotID            *string
	Period            *BillingPeriod
	CustomerID        string
	SubscriptionID    string
	PaymentIntentID   string
	CreatedAt         time.Time
}
