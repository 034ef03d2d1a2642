package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reminder sweep.
type Metrics struct {
	// Completed sweep runs
	Sweeps prometheus.Counter

	// Reminders sent by kind
	Reminders *prometheus.CounterVec

	// Sweep runs that hit at least one error
	SweepErrors prometheus.Counter
}

// New creates a new Metrics instance with all reminder metrics registered.
func New() *Metrics {
	return &Metrics{
		Sweeps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "libripal_reminder_sweeps_total",
			Help: "Total completed reminder sweep runs",
		}),
		Reminders: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "libripal_reminders_sent_total",
			Help: "Reminders sent by kind",
		}, []string{"kind"}), // kind: "due_soon", "overdue"
		SweepErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "libripal_reminder_sweep_errors_total",
			Help: "Sweep runs that hit at least one error",
		}),
	}
}

// IncrementSweeps records one completed sweep run.
func (m *Metrics) IncrementSweeps() {
	if m != nil {
		m.Sweeps.Inc()
	}
}

// IncrementReminders records one sent reminder of the given kind.
func (m *Metrics) IncrementReminders(kind string) {
	if m != nil {
		m.Reminders.WithLabelValues(kind).Inc()
	}
}

// IncrementSweepErrors records a sweep run that hit errors.
func (m *Metrics) IncrementSweepErrors() {
	if m != nil {
		m.SweepErrors.Inc()
	}
}
