package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notification module.
type Metrics struct {
	// Notification rows created
	Created prometheus.Counter

	// Channel dispatch attempts by channel and outcome
	Dispatches *prometheus.CounterVec

	// Telegram link codes issued and redeemed
	LinkCodes *prometheus.CounterVec
}

// New creates a new Metrics instance with all notification metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "libripal_notifications_created_total",
			Help: "Total notification rows created",
		}),
		Dispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "libripal_notification_dispatches_total",
			Help: "Channel dispatch attempts by channel and outcome",
		}, []string{"channel", "outcome"}), // channel: "email", "telegram"; outcome: "ok", "error"
		LinkCodes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "libripal_telegram_link_codes_total",
			Help: "Telegram link codes by stage",
		}, []string{"stage"}), // stage: "issued", "redeemed", "rejected"
	}
}

// IncrementCreated records one stored notification.
func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

// IncrementDispatch records one channel dispatch attempt.
func (m *Metrics) IncrementDispatch(channel, outcome string) {
	if m != nil {
		m.Dispatches.WithLabelValues(channel, outcome).Inc()
	}
}

// IncrementLinkCode records a link-code lifecycle step.
func (m *Metrics) IncrementLinkCode(stage string) {
	if m != nil {
		m.LinkCodes.WithLabelValues(stage).Inc()
	}
}
