package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal counts requests by client, method, route, and status.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed, by tenant client.",
		},
		[]string{"client", "method", "route", "status"},
	)

	// Streams are left out: their duration is the connection lifetime.
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notify",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds, excluding event streams.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

const anonymousClient = "anonymous"

// HTTPMiddleware instruments each request. clientOf reads the tenant client
// after the handler ran, so route-level auth has populated the context; it
// may be nil or return "" for unauthenticated requests.
func HTTPMiddleware(clientOf func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unknown"
			}
			client := anonymousClient
			if clientOf != nil {
				if v := clientOf(c); v != "" {
					client = v
				}
			}
			method := c.Request().Method
			status := strconv.Itoa(statusOf(c, err))

			httpRequestsTotal.WithLabelValues(client, method, route, status).Inc()
			if !strings.HasPrefix(c.Response().Header().Get(echo.HeaderContentType), "text/event-stream") {
				httpRequestDurationSeconds.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			}
			return err
		}
	}
}

// statusOf is the status the client will see. A returned error has not been
// written yet when the middleware runs.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
