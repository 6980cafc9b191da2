// Package metrics holds the Prometheus collectors shared across packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunevault_http_requests_total",
			Help: "Total HTTP requests by method, route template and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tunevault_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// IngestTotal counts ingestions by outcome: ok, empty, persist_failed, error.
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunevault_ingest_total",
			Help: "Ingestion attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// ArtifactCleanupTotal counts compensating and reconcile deletes.
	ArtifactCleanupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunevault_artifact_cleanup_total",
			Help: "Best-effort artifact deletions by kind (audio, cover, orphan) and result.",
		},
		[]string{"kind", "result"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tunevault_search_duration_seconds",
			Help:    "Catalog search latency (count plus fetch) in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunevault_cache_requests_total",
			Help: "Catalog cache lookups by kind (facets, suggest) and result (hit, miss, error).",
		},
		[]string{"kind", "result"},
	)
)

// Cleanup records the result of a best-effort artifact delete.
func Cleanup(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ArtifactCleanupTotal.WithLabelValues(kind, result).Inc()
}
