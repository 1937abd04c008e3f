// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus instrumentation for the ETL stages,
// the Helix client, the DuckDB store and the analytics API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Helix client metrics
	HelixRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helix_requests_total",
			Help: "Total number of Twitch Helix API requests",
		},
		[]string{"endpoint", "status"},
	)

	HelixRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helix_request_duration_seconds",
			Help:    "Duration of Twitch Helix API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	HelixRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helix_rate_limited_total",
			Help: "Total number of HTTP 429 responses from Helix",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)

	// ETL stage metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etl_stage_duration_seconds",
			Help:    "Duration of ETL stages in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"}, // "extract", "transform", "load"
	)

	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_stage_errors_total",
			Help: "Total number of ETL stage failures",
		},
		[]string{"stage"},
	)

	StreamsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streams_fetched_total",
			Help: "Total number of stream records fetched from Helix",
		},
	)

	// Load metrics
	RowsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streams_rows_inserted_total",
			Help: "Total number of new stream rows inserted",
		},
	)

	RowsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streams_rows_duplicate_total",
			Help: "Total number of stream rows skipped as already ingested",
		},
	)

	LoadBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "load_batch_size",
			Help:    "Number of rows per load batch",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordStage records the duration of an ETL stage, incrementing the error
// counter when err is non-nil.
func RecordStage(stage string, duration time.Duration, err error) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		StageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordHelixRequest records a single Helix API request outcome.
func RecordHelixRequest(endpoint string, statusCode int, duration time.Duration) {
	HelixRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	HelixRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAPIRequest records an analytics API request outcome.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
