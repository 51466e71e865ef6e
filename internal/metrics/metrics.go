package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rateLimitExceeded counts HTTP 429 events from the rate limit middleware.
	// Labels:
	// - endpoint: short name like "notify:emit"
	// - source:   "tenant" or "ip"
	rateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "http",
			Name:      "rate_limit_exceeded_total",
			Help:      "Number of requests rejected due to rate limiting (HTTP 429)",
		},
		[]string{"endpoint", "source"},
	)

	// sseStreamsActive tracks open Server-Sent Events feed streams.
	sseStreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notify",
		Subsystem: "http",
		Name:      "sse_streams_active",
		Help:      "Number of open notification feed streams.",
	})
)

// IncRateLimitExceeded increments the 429 counter for the given endpoint and source.
func IncRateLimitExceeded(endpoint, source string) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	if source == "" {
		source = "unknown"
	}
	rateLimitExceeded.WithLabelValues(endpoint, source).Inc()
}

// StreamOpened and StreamClosed move the active SSE stream gauge.
func StreamOpened() { sseStreamsActive.Inc() }
func StreamClosed() { sseStreamsActive.Dec() }
