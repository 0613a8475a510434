package metrics

import "github.com/prometheus/client_golang/prometheus"

// Language model gateway metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of language model calls",
		},
		[]string{"purpose", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Language model call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"purpose"},
	)
)

// Pipeline metrics.
var (
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of a search pipeline stage in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	PipelineFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_fallbacks_total",
			Help:      "Fallback paths taken by stage",
		},
		[]string{"stage"}, // analyzer, embedding, rerank, formatter
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Search requests by outcome",
		},
		[]string{"outcome"}, // ok, degraded, empty, failed, rejected, panic
	)
)

// Vector index metrics.
var (
	IndexRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_rows",
			Help:      "Number of rows in the vector index",
		},
	)

	IndexRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_repairs_total",
			Help:      "Snapshot loads that required truncation to a consistent prefix",
		},
	)

	IndexPersistErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_persist_errors_total",
			Help:      "Failed snapshot writes",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers gateway, pipeline and index metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		LLMRequestsTotal,
		LLMRequestDuration,
		PipelineStageDuration,
		PipelineFallbacksTotal,
		SearchesTotal,
		IndexRows,
		IndexRepairsTotal,
		IndexPersistErrorsTotal,
	)
	pipelineMetricsRegistered = true
}
