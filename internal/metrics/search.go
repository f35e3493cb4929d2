package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search and result cache Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search requests by outcome",
		},
		[]string{"outcome"}, // "hit" / "miss" / "degraded" / "error"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"cached"},
	)

	StrategyFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_strategy_failures_total",
			Help:      "Strategy failures that degraded a search",
		},
		[]string{"strategy"},
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_total",
			Help:      "Result cache lookups by result",
		},
		[]string{"result"}, // "hit" / "miss" / "expired"
	)

	ResultCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "result_cache_entries",
			Help:      "Entries currently held by the result cache",
		},
	)

	CatalogInterventions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_interventions",
			Help:      "Interventions in the serving catalog snapshot",
		},
	)

	CatalogVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_version",
			Help:      "Version of the serving catalog snapshot",
		},
	)
)

var registerSearchOnce sync.Once

// RegisterSearchMetrics registers search, cache and catalog metrics. Safe to call more than once.
func RegisterSearchMetrics() {
	registerSearchOnce.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchDuration,
			StrategyFailuresTotal,
			ResultCacheTotal,
			ResultCacheEntries,
			CatalogInterventions,
			CatalogVersion,
		)
	})
}
