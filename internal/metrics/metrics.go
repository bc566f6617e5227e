// Package metrics holds the Prometheus collectors shared by the services.
// Collectors live on a private registry exposed through Handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// Latency buckets in seconds, from cached lookups up to slow model calls.
	latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

	ScoreRequests = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "similarity_requests_total",
			Help: "Scoring requests by transport and response status",
		},
		[]string{"transport", "status"},
	)

	ScoreLatency = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "similarity_request_duration_seconds",
			Help:    "End-to-end scoring latency",
			Buckets: latencyBuckets,
		},
		[]string{"transport"},
	)

	EmbeddingLatency = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "similarity_embedding_duration_seconds",
			Help:    "Embedding backend call latency",
			Buckets: latencyBuckets,
		},
		[]string{"provider", "op"},
	)

	EmbeddingErrors = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "similarity_embedding_errors_total",
			Help: "Failed embedding backend calls",
		},
		[]string{"provider", "op"},
	)

	CacheLookups = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "similarity_cache_lookups_total",
			Help: "Embedding cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	TransliterationFallbacks = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "similarity_transliteration_fallbacks_total",
			Help: "Romanized answers returned unchanged because transliteration failed",
		},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveEmbedding records one backend call.
func ObserveEmbedding(provider, op string, start time.Time, err error) {
	EmbeddingLatency.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
	if err != nil {
		EmbeddingErrors.WithLabelValues(provider, op).Inc()
	}
}

// Registry returns the registry the collectors are registered on.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
