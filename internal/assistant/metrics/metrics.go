package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the assistant module.
type Metrics struct {
	// Chat messages handled, by resolved intent
	Chats *prometheus.CounterVec

	// Analyses that fell back to the help intent, by cause
	AnalysisFallbacks *prometheus.CounterVec
}

// New creates a new Metrics instance with all assistant metrics registered.
func New() *Metrics {
	return &Metrics{
		Chats: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "libripal_assistant_chats_total",
			Help: "Chat messages handled by resolved intent",
		}, []string{"intent"}),
		AnalysisFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "libripal_assistant_analysis_fallbacks_total",
			Help: "Intent analyses that degraded to help, by cause",
		}, []string{"cause"}), // cause: "llm_error", "parse_error"
	}
}

// IncrementChat records one handled chat message.
func (m *Metrics) IncrementChat(intent string) {
	if m != nil {
		m.Chats.WithLabelValues(intent).Inc()
	}
}

// IncrementAnalysisFallback records one degraded analysis.
func (m *Metrics) IncrementAnalysisFallback(cause string) {
	if m != nil {
		m.AnalysisFallbacks.WithLabelValues(cause).Inc()
	}
}
