package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-wide Prometheus metrics. Domain packages
// register their own collectors next to their services.
type Metrics struct {
	PatronsCreated prometheus.Counter
	RequestLatency *prometheus.HistogramVec
}

// New creates and registers all application-wide Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PatronsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "libripal_patrons_created_total",
			Help: "Total number of patrons created in the system",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "libripal_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// IncrementPatronsCreated increments the patrons created counter by 1.
func (m *Metrics) IncrementPatronsCreated() {
	if m != nil {
		m.PatronsCreated.Inc()
	}
}

// ObserveRequest records a request latency sample.
func (m *Metrics) ObserveRequest(method, path string, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(method, path).Observe(d.Seconds())
	}
}
