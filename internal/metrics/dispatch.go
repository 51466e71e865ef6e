package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// emitOutcomesTotal counts emissions by event type and outcome.
	// Labels:
	// - event_type: catalog event type, e.g. "inventory.low_stock"
	// - outcome: dispatched | deferred | skipped_duplicate | skipped_no_identity | failed
	emitOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "dispatch",
			Name:      "emit_outcomes_total",
			Help:      "Event emissions by event type and outcome.",
		},
		[]string{"event_type", "outcome"},
	)

	// fanoutChunksTotal counts committed and failed fan-out chunks.
	// Labels:
	// - result: committed | failed
	fanoutChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "dispatch",
			Name:      "fanout_chunks_total",
			Help:      "Fan-out batches by result.",
		},
		[]string{"result"},
	)

	// recipientsPerDispatch observes the resolved audience size.
	recipientsPerDispatch = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "notify",
		Subsystem: "dispatch",
		Name:      "recipients",
		Help:      "Resolved recipients per dispatched event.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})

	// failuresTotal counts reported pipeline failures by kind.
	// Labels:
	// - kind: directory_query_failure | storage_write_failure | partial_fanout_failure | handoff_failure | ...
	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "Pipeline failures by kind.",
		},
		[]string{"kind"},
	)

	// feedSubscriptionsActive tracks live feed store subscriptions.
	feedSubscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notify",
		Subsystem: "feed",
		Name:      "subscriptions_active",
		Help:      "Number of live feed subscriptions.",
	})

	// feedMarkedReadTotal counts notifications flipped to read.
	feedMarkedReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notify",
		Subsystem: "feed",
		Name:      "marked_read_total",
		Help:      "Notifications marked as read.",
	})
)

// IncEmitOutcome increments the emit outcome counter.
func IncEmitOutcome(eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	emitOutcomesTotal.WithLabelValues(eventType, outcome).Inc()
}

// AddFanoutChunks adds committed and failed chunk counts.
func AddFanoutChunks(committed, failed int) {
	if committed > 0 {
		fanoutChunksTotal.WithLabelValues("committed").Add(float64(committed))
	}
	if failed > 0 {
		fanoutChunksTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

// ObserveRecipients records the audience size of one dispatch.
func ObserveRecipients(n int) { recipientsPerDispatch.Observe(float64(n)) }

// IncFailure increments the failure counter for kind.
func IncFailure(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	failuresTotal.WithLabelValues(kind).Inc()
}

// FeedSubscribed and FeedUnsubscribed move the live subscription gauge.
func FeedSubscribed()   { feedSubscriptionsActive.Inc() }
func FeedUnsubscribed() { feedSubscriptionsActive.Dec() }

// AddMarkedRead counts notifications flipped to read.
func AddMarkedRead(n int) {
	if n > 0 {
		feedMarkedReadTotal.Add(float64(n))
	}
}
