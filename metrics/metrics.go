// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LockOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_lock_operations_total",
		Help: "Lock operations by operation and outcome",
	}, []string{"operation", "outcome"})

	LocksForceReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kb_locks_force_released_total",
		Help: "Foreign locks released through the force override",
	})

	LocksExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kb_locks_expired_total",
		Help: "Expired locks reaped by status checks or the sweeper",
	})

	ArticleMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_article_mutations_total",
		Help: "Article mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	Compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_compensations_total",
		Help: "Undo steps run after a failed article mutation",
	}, []string{"operation"})

	CategoryDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kb_category_count_drift_total",
		Help: "Category count adjustments that failed and await reconciliation",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kb_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})
)

// Outcome labels a result for the *_total counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
