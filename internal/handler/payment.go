package handler

import (
	"context"
	"net/http"

	"github.com/smuppy/backend/internal/contextkeys"
	"github.com/smuppy/backend/internal/domain"
)

// CheckoutCreator starts checkouts.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, userID string, req *domain.CheckoutRequest) (*domain.CheckoutResult, error)
}

type PaymentHandler struct {
	checkout CheckoutCreator
}

func NewPaymentHandler(checkout CheckoutCreator) *PaymentHandler {
	return &PaymentHandler{checkout: checkout}
}

// CreateCheckout handles POST /api/payments/checkout.
func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(contextkeys.UserID).(string)
	if !ok || userID == "" {
		Error(w, domain.ErrUnauthorized("unauthorized"))
		return
	}

	var req domain.CheckoutRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	result, err := h.checkout.CreateCheckout(r.Context(), userID, &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, result.Response())
}
