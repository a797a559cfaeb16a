package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every metric exported by the service.
const Namespace = "dictcache"

// Dictionary cache Prometheus metrics.
var (
	DictionaryLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lookups_total",
			Help:      "Dictionary cache lookups by outcome",
		},
		[]string{"dictionary", "kind", "result"}, // kind: collection/schema; result: hit/miss/stale/forced
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the catalog API",
		},
		[]string{"dictionary", "op", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Catalog API request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)

	PreloadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "preload_wave_duration_seconds",
			Help:      "Duration of each preload wave",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"wave"},
	)

	PreloadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "preload_failures_total",
			Help:      "Dictionaries that failed to load during preload",
		},
		[]string{"dictionary", "wave"},
	)

	InvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "invalidations_total",
			Help:      "Invalidation events received from the message bus",
		},
		[]string{"result"}, // refreshed/failed/ignored
	)
)

var dictMetricsRegistered bool

// RegisterDictionaryMetrics registers the cache metrics. Must be called once from main.
func RegisterDictionaryMetrics() {
	if dictMetricsRegistered {
		return
	}
	prometheus.MustRegister(DictionaryLookupsTotal)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(PreloadDuration)
	prometheus.MustRegister(PreloadFailuresTotal)
	prometheus.MustRegister(InvalidationsTotal)
	dictMetricsRegistered = true
}
