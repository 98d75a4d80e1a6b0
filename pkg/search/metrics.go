package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "rankingengine"

var (
	searchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "search_duration_seconds",
			Help:      "Search request latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5.1s
		},
	)

	searchDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "search_degraded_total",
			Help:      "Total number of search responses served with a degraded (non-network) embedding.",
		},
	)

	searchFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "search_keyword_fallback_total",
			Help:      "Total number of search responses served via the keyword fallback.",
		},
	)

	weightsCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "weights_cache_hits_total",
			Help:      "Total number of active-weights cache hits.",
		},
	)

	weightsCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "weights_cache_misses_total",
			Help:      "Total number of active-weights cache misses.",
		},
	)
)
