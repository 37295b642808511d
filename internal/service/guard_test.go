package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/smuppy/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRequestGuard_Validation(t *testing.T) {
	userID := uuid.NewString()
	valid := func() *domain.CheckoutRequest {
		return &domain.CheckoutRequest{BusinessID: uuid.NewString(), ServiceID: uuid.NewString()}
	}

	tests := []struct {
		name    string
		mutate  func(r *domain.CheckoutRequest)
		wantErr string
	}{
		{"valid", func(r *domain.CheckoutRequest) {}, ""},
		{"valid with booking", func(r *domain.CheckoutRequest) {
			r.Date = "2026-02-28"
			r.SlotID = uuid.NewString()
		}, ""},
		{"missing business", func(r *domain.CheckoutRequest) { r.BusinessID = "" }, "businessId is required"},
		{"bad service", func(r *domain.CheckoutRequest) { r.ServiceID = "42" }, "serviceId must be a valid id"},
		{"bad slot", func(r *domain.CheckoutRequest) { r.SlotID = "abc" }, "slotId must be a valid id"},
		{"not a calendar date", func(r *domain.CheckoutRequest) { r.Date = "2026-02-30" }, "date must be a date in YYYY-MM-DD form"},
		{"wrong date layout", func(r *domain.CheckoutRequest) { r.Date = "2026/02/01" }, "date must be a date in YYYY-MM-DD form"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewRequestGuard(&fakeLimiter{}, zap.NewNop())
			req := valid()
			tt.mutate(req)

			err := g.Check(context.Background(), userID, req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			requireKind(t, err, domain.KindInvalidArgument)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequestGuard_RateLimitComesBeforeValidation(t *testing.T) {
	limiter := &fakeLimiter{}
	g := NewRequestGuard(limiter, zap.NewNop())
	userID := uuid.NewString()

	for i := 0; i < CheckoutRateLimit; i++ {
		_ = g.Check(context.Background(), userID, &domain.CheckoutRequest{})
	}
	err := g.Check(context.Background(), userID, &domain.CheckoutRequest{})
	requireKind(t, err, domain.KindRateLimited)
	assert.Equal(t, CheckoutRateLimit+1, limiter.counts["checkout:"+userID])

	appErr, _ := domain.AsAppError(err)
	assert.Equal(t, CheckoutRateWindow, appErr.RetryAfter)
}

func TestRequestGuard_RejectsNonUUIDIdentity(t *testing.T) {
	limiter := &fakeLimiter{}
	g := NewRequestGuard(limiter, zap.NewNop())

	err := g.Check(context.Background(), "admin", &domain.CheckoutRequest{})
	requireKind(t, err, domain.KindUnauthorized)
	assert.Empty(t, limiter.counts)
}
