// Package metrics defines the prometheus metrics exposed by crudcast.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics

	// HTTPRequests tracks requests by method, route pattern and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crudcast",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration tracks request handling duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crudcast",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request handling duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRateLimited counts requests rejected by the rate limiter
	HTTPRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crudcast",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected due to rate limiting",
		},
	)

	// Model metrics

	// ModelOperationDuration tracks the duration of store operations
	ModelOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crudcast",
			Subsystem: "model",
			Name:      "operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"entity", "operation"},
	)

	// ModelOperationTotal counts store operations by result
	ModelOperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crudcast",
			Subsystem: "model",
			Name:      "operations_total",
			Help:      "Total store operations",
		},
		[]string{"entity", "operation", "result"},
	)

	// CacheLookups counts cached-model lookups by outcome
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crudcast",
			Subsystem: "model",
			Name:      "cache_lookups_total",
			Help:      "Cached model lookups by outcome",
		},
		[]string{"entity", "outcome"}, // outcome: hit, miss, bypass
	)

	// Changefeed metrics

	// ChangeEventsPublished counts published change events
	ChangeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crudcast",
			Subsystem: "changefeed",
			Name:      "events_published_total",
			Help:      "Total change events published",
		},
		[]string{"entity", "operation", "result"},
	)
)
