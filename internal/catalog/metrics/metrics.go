package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the catalog module.
type Metrics struct {
	// Searches handled, regardless of outcome
	Searches prometheus.Counter

	// Outbound source calls by source and outcome
	SourceRequests *prometheus.CounterVec

	// Cache lookups by outcome
	CacheLookups *prometheus.CounterVec

	// Overall search latency including fan-out
	SearchLatency prometheus.Histogram
}

// New creates a new Metrics instance with all catalog metrics registered.
func New() *Metrics {
	return &Metrics{
		Searches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "libripal_catalog_searches_total",
			Help: "Total catalog searches handled",
		}),
		SourceRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "libripal_catalog_source_requests_total",
			Help: "Outbound catalog source calls by source and outcome",
		}, []string{"source", "outcome"}), // outcome: "ok", "error"
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "libripal_catalog_cache_lookups_total",
			Help: "Catalog cache lookups by outcome",
		}, []string{"outcome"}), // outcome: "hit", "miss"
		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "libripal_catalog_search_duration_seconds",
			Help:    "Duration of aggregate catalog searches",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementSearches records one handled search.
func (m *Metrics) IncrementSearches() {
	if m != nil {
		m.Searches.Inc()
	}
}

// IncrementSourceRequest records one outbound source call.
func (m *Metrics) IncrementSourceRequest(source, outcome string) {
	if m != nil {
		m.SourceRequests.WithLabelValues(source, outcome).Inc()
	}
}

// IncrementCacheLookup records a cache hit or miss.
func (m *Metrics) IncrementCacheLookup(outcome string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(outcome).Inc()
	}
}

// ObserveSearchLatency records the aggregate search duration.
func (m *Metrics) ObserveSearchLatency(d time.Duration) {
	if m != nil {
		m.SearchLatency.Observe(d.Seconds())
	}
}
