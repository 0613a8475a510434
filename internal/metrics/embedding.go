package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dishfinder"

// Embedding outcome labels.
const (
	EmbedOK      = "success"
	EmbedError   = "error"
	EmbedTimeout = "timeout"
	EmbedEmpty   = "empty_response"
)

// Embedding metrics, labelled by provider and model.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding requests by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding latency in seconds, successful requests only",
			// The local hashing embedder answers in microseconds.
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_tokens_total",
			Help:      "Tokens sent for embedding",
		},
		[]string{"provider", "model"},
	)

	// EmbeddingCacheTotal counts lookups per cache layer ("memo", "redis").
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"layer", "result"},
	)
)

var registerEmbeddingOnce sync.Once

// RegisterEmbeddingMetrics registers the embedding metrics. Safe to call more than once.
func RegisterEmbeddingMetrics() {
	registerEmbeddingOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingCacheTotal,
		)
	})
}

// ObserveEmbedding records one provider call. Latency and tokens are only
// recorded for successful calls.
func ObserveEmbedding(provider, model, status string, elapsed time.Duration, tokens int) {
	EmbeddingRequestsTotal.WithLabelValues(provider, model, status).Inc()
	if status != EmbedOK {
		return
	}
	EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
	if tokens > 0 {
		EmbeddingTokensTotal.WithLabelValues(provider, model).Add(float64(tokens))
	}
}

// CacheLookup records a hit or miss on a cache layer.
func CacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	EmbeddingCacheTotal.WithLabelValues(layer, result).Inc()
}
