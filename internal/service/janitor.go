package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// QuotaPurger deletes quota hits older than a cutoff.
type QuotaPurger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// QuotaJanitor periodically removes rate limit hits that no window can still count.
type QuotaJanitor struct {
	store    QuotaPurger
	interval time.Duration
	logger   *zap.Logger
}

// NewQuotaJanitor creates a janitor that runs every interval.
func NewQuotaJanitor(store QuotaPurger, interval time.Duration, logger *zap.Logger) *QuotaJanitor {
	return &QuotaJanitor{store: store, interval: interval, logger: logger}
}

// Start runs the purge loop in a background goroutine until ctx is done.
func (j *QuotaJanitor) Start(ctx context.Context) {
	go func() {
		j.purge(ctx)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.purge(ctx)
			}
		}
	}()
}

// purge keeps two windows of history, so no hit a live window counts is removed.
func (j *QuotaJanitor) purge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := j.store.Purge(ctx, 2*CheckoutRateWindow)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Warn("failed to purge rate limit hits", zap.Error(err))
		}
		return
	}
	if n > 0 {
		j.logger.Debug("purged rate limit hits", zap.Int64("rows", n))
	}
}
