// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_batches_total",
			Help: "Total number of batch reconciliation requests served",
		},
	)

	SubqueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_subqueries_total",
			Help: "Total number of sub-queries processed, by entity type and outcome",
		},
		[]string{"entity", "outcome"},
	)

	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_retrieval_duration_seconds",
			Help:    "Duration of retrieval calls, by channel",
			Buckets: []float64{.005, .01, .025, .05, .1, .15, .25, .5, 1},
		},
		[]string{"channel"},
	)

	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_cache_events_total",
			Help: "Candidate cache hits, misses and errors",
		},
		[]string{"event"},
	)
)
