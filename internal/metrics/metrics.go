// Package metrics exposes the Prometheus collectors for the tracker.
//
// Collectors register on the default registry at init and are served by
// promhttp at /metrics:
//   - cache_lookups_total{kind,result}: record store hits and misses (kind=user|match)
//   - upstream_requests_total{endpoint,outcome}: Riot API calls by outcome
//   - upstream_request_duration_seconds{endpoint}
//   - store_operation_duration_seconds{operation}
//   - store_errors_total{operation}
//   - match_fetch_skipped_total: match ids dropped from a batch after a fetch failure
//   - http_requests_total{method,route,status}, http_request_duration_seconds{method,route}
//   - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Record store lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Riot API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Riot API request latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Record store operation latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Record store operation failures",
		},
		[]string{"operation"},
	)

	MatchFetchSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_fetch_skipped_total",
			Help: "Match ids omitted from a result because their fetch failed",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Cache lookup results
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)
