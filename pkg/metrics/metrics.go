// Package metrics provides Prometheus metrics for the fescue service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchAttemptsTotal tracks matcher runs by outcome
	// (cached, matched, unmatched, no_candidate, no_data, linked_elsewhere, error).
	MatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fescue",
			Subsystem: "matching",
			Name:      "attempts_total",
			Help:      "Total number of profile match attempts by outcome",
		},
		[]string{"outcome", "method"},
	)

	// MatchDuration tracks the duration of a full match run in seconds
	MatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fescue",
			Subsystem: "matching",
			Name:      "duration_seconds",
			Help:      "Duration of profile match runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"},
	)

	// MatchConfidence tracks the best candidate confidence of each run
	MatchConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fescue",
			Subsystem: "matching",
			Name:      "confidence",
			Help:      "Confidence of the best candidate per match run",
			Buckets:   []float64{0, 0.2, 0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	// CandidatesScanned tracks how many CRM customers each run scored
	CandidatesScanned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fescue",
			Subsystem: "matching",
			Name:      "candidates_scanned",
			Help:      "Number of CRM customers scored per match run",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// StatusCacheLookups tracks VIP status cache hits and misses
	StatusCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fescue",
			Subsystem: "status_cache",
			Name:      "lookups_total",
			Help:      "Total number of VIP status cache lookups by result",
		},
		[]string{"result"},
	)

	// BestEffortFailures tracks failures of writes that never fail the request
	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fescue",
			Subsystem: "best_effort",
			Name:      "failures_total",
			Help:      "Total number of failed best-effort side effects",
		},
		[]string{"operation"},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests to the CRM
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fescue",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fescue",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// BackfillProfilesTotal tracks profiles visited by the backfill job by result
	BackfillProfilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fescue",
			Subsystem: "backfill",
			Name:      "profiles_total",
			Help:      "Total number of profiles processed by the backfill job",
		},
		[]string{"result"},
	)

	// PackageSyncEventsTotal tracks package sync requests published
	PackageSyncEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fescue",
			Subsystem: "package_sync",
			Name:      "events_total",
			Help:      "Total number of package sync events by status",
		},
		[]string{"status"},
	)
)
