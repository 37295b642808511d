package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/smuppy/backend/internal/domain"
)

// maxWebhookBody bounds provider event payloads.
const maxWebhookBody = 64 << 10

// WebhookProcessor consumes provider events.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error)
}

type WebhookHandler struct {
	webhooks WebhookProcessor
}

func NewWebhookHandler(webhooks WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandleStripe handles POST /api/payments/webhook. The body is read raw because the
// signature covers the exact bytes.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		Error(w, domain.ErrBadRequest("failed to read body"))
		return
	}

	outcome, err := h.webhooks.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"received": true, "outcome": outcome})
}
