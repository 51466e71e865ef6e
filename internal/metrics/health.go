package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// dependencyUp is 1 when the last health ping to a backing service succeeded.
	dependencyUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "notify",
			Subsystem: "dependency",
			Name:      "up",
			Help:      "Backing service availability from /healthz (1=up, 0=down).",
		},
		[]string{"dependency"},
	)

	dependencyPingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notify",
			Subsystem: "dependency",
			Name:      "ping_seconds",
			Help:      "Backing service ping latency in seconds.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"dependency"},
	)
)

// Status values reported by CheckDependency.
const (
	StatusOK   = "ok"
	StatusDown = "down"
)

// CheckDependency pings one backing service (postgres, redis), records its
// latency and availability, and returns StatusOK or StatusDown.
func CheckDependency(ctx context.Context, name string, ping func(context.Context) error) string {
	start := time.Now()
	err := ping(ctx)
	dependencyPingSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		dependencyUp.WithLabelValues(name).Set(0)
		return StatusDown
	}
	dependencyUp.WithLabelValues(name).Set(1)
	return StatusOK
}
