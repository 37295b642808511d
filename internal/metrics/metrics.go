// Package metrics exposes checkout and payment-provider counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the service layer.
type Recorder interface {
	RecordCheckout(mode, outcome string)
	RecordProviderCall(operation, outcome string, duration time.Duration)
	RecordProviderRetry(operation string)
	RecordWebhook(eventType, outcome string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	checkouts        *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerRetries  *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	webhooks         *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_requests_total",
			Help: "Checkout requests by purchase mode and outcome.",
		}, []string{"mode", "outcome"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Payment provider operations by outcome.",
		}, []string{"operation", "outcome"}),
		providerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Retried payment provider attempts.",
		}, []string{"operation"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Payment provider operation latency including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
	}

	reg.MustRegister(
		c.checkouts,
		c.providerCalls,
		c.providerRetries,
		c.providerDuration,
		c.webhooks,
	)

	return c
}

func (c *Collector) RecordCheckout(mode, outcome string) {
	if mode == "" {
		mode = "unknown"
	}
	c.checkouts.WithLabelValues(mode, outcome).Inc()
}

func (c *Collector) RecordProviderCall(operation, outcome string, duration time.Duration) {
	c.providerCalls.WithLabelValues(operation, outcome).Inc()
	c.providerDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordProviderRetry(operation string) {
	c.providerRetries.WithLabelValues(operation).Inc()
}

func (c *Collector) RecordWebhook(eventType, outcome string) {
	c.webhooks.WithLabelValues(eventType, outcome).Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used where metrics are not wired, mostly tests.
type Nop struct{}

func (Nop) RecordCheckout(string, string)                    {}
func (Nop) RecordProviderCall(string, string, time.Duration) {}
func (Nop) RecordProviderRetry(string)                       {}
func (Nop) RecordWebhook(string, string)                     {}
