// Package metrics exposes the bridge's Prometheus instrumentation: queue
// depth and dispatch outcomes per webhook, render latency per template,
// sync batch duration, and circuit breaker state.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Current number of queued messages per webhook target",
		},
		[]string{"webhook"},
	)

	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Total Discord delivery outcomes by webhook and result",
		},
		[]string{"webhook", "outcome"}, // outcome: sent, failed, retried, rate_limited
	)

	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_duration_seconds",
			Help:    "Duration of template rendering by template name",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"template"},
	)

	SyncBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_duration_seconds",
			Help:    "Duration of one sync batch (convert+detect+save+dispatch)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SyncItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_items_processed_total",
			Help: "Total items processed during reconciliation, by outcome",
		},
		[]string{"action"}, // new_item, upgraded_item, no_changes
	)

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total reconciliation runs by sync type and status",
		},
		[]string{"sync_type", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	LastSyncTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "last_sync_timestamp_seconds",
			Help: "Unix timestamp of the last completed reconciliation run",
		},
	)
)

// RecordDispatch records a Discord delivery outcome and refreshes that
// webhook's current queue depth gauge.
func RecordDispatch(webhook, outcome string, queueDepth int) {
	DispatchOutcomes.WithLabelValues(webhook, outcome).Inc()
	QueueDepth.WithLabelValues(webhook).Set(float64(queueDepth))
}

// RecordRender records how long one template render took.
func RecordRender(template string, d time.Duration) {
	RenderDuration.WithLabelValues(template).Observe(d.Seconds())
}

// RecordSyncBatch records one batch's processing duration.
func RecordSyncBatch(d time.Duration) {
	SyncBatchDuration.Observe(d.Seconds())
}

// RecordSyncItem increments the per-action reconciliation counter.
func RecordSyncItem(action string) {
	SyncItemsProcessed.WithLabelValues(action).Inc()
}

// RecordSyncRun records a completed reconciliation run and refreshes the
// last-sync gauge on success.
func RecordSyncRun(syncType, status string, finishedAt time.Time) {
	SyncRunsTotal.WithLabelValues(syncType, status).Inc()
	if status == "completed" {
		LastSyncTimestamp.Set(float64(finishedAt.Unix()))
	}
}

// SetCircuitBreakerState publishes a circuit breaker's numeric state
// (0=closed, 1=half-open, 2=open).
func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// Handler returns the HTTP handler for the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
