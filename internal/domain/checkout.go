package domain

import "time"

// CheckoutRequest is the input for starting a checkout.
type CheckoutRequest struct {
	BusinessID string `json:"businessId" validate:"required,uuid"`
	ServiceID  string `json:"serviceId" validate:"required,uuid"`
	Date       string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SlotID     string `json:"slotId,omitempty" validate:"omitempty,uuid"`
}

// CheckoutResponse is returned to the client on success.
type CheckoutResponse struct {
	Success     bool   `json:"success"`
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// CheckoutIntent is the per-request value the session is built from. It is never
// persisted.
type CheckoutIntent struct {
	Mode            PurchaseMode
	PriceCents      int64
	CommissionCents int64
	ProductName     string
	Description     string
	SuccessURL      string
	CancelURL       string
	ExpiresAt       time.Time
	Metadata        ReconciliationMetadata
}

// CheckoutResult pairs the intent with what the provider returned for it.
type CheckoutResult struct {
	Intent      *CheckoutIntent
	SessionID   string
	CheckoutURL string
	ExpiresAt   time.Time
}

// Response converts the result into the client payload.
func (r *CheckoutResult) Response() *CheckoutResponse {
	return &CheckoutResponse{
		Success:     true,
		CheckoutURL: r.CheckoutURL,
		SessionID:   r.SessionID,
		ExpiresAt:   r.ExpiresAt.Unix(),
	}
}
