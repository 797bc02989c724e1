// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the auskunft service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auskunft_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auskunft_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auskunft_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// LLMRequestsTotal counts calls to the generation backend by operation
	// (generate, stream, embed, list_models) and outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auskunft_llm_requests_total",
			Help: "Backend LLM requests",
		},
		[]string{"backend", "model", "operation", "status"},
	)

	// LLMDuration records backend call latency in seconds.
	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auskunft_llm_duration_seconds",
			Help:    "Backend LLM call latency",
			Buckets: LLMBuckets,
		},
		[]string{"backend", "operation"},
	)

	// LLMTokensTotal counts tokens processed by direction (input/output).
	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auskunft_llm_tokens_total",
			Help: "Token count",
		},
		[]string{"backend", "model", "direction"},
	)

	// StreamChunksTotal counts streamed text chunks delivered to callers.
	StreamChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auskunft_stream_chunks_total",
			Help: "Streamed chunks delivered",
		},
		[]string{"backend"},
	)

	// StoreOperationsTotal counts persistence operations by store kind and outcome.
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auskunft_store_operations_total",
			Help: "Store operations",
		},
		[]string{"store", "operation", "status"},
	)

	// IngestChunksTotal counts document chunks written at ingest time.
	IngestChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auskunft_ingest_chunks_total",
			Help: "Chunks ingested",
		},
		[]string{"collection"},
	)

	// RetentionPurgedTotal counts records removed by the retention sweeper.
	RetentionPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auskunft_retention_purged_total",
			Help: "Records purged by retention",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auskunft_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		LLMRequestsTotal,
		LLMDuration,
		LLMTokensTotal,
		StreamChunksTotal,
		StoreOperationsTotal,
		IngestChunksTotal,
		RetentionPurgedTotal,
		RateLimitRejectedTotal,
	)
}
