package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the circulation module.
type Metrics struct {
	// Loans issued
	LoansIssued prometheus.Counter

	// Loans renewed
	LoansRenewed prometheus.Counter

	// Loans returned
	LoansReturned prometheus.Counter

	// Requests denied by lending policy, by reason
	PolicyDenials *prometheus.CounterVec

	// Fine units frozen onto returned loans
	FinesFrozen prometheus.Counter
}

// New creates a new Metrics instance with all circulation metrics registered.
func New() *Metrics {
	return &Metrics{
		LoansIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "libripal_circulation_loans_issued_total",
			Help: "Total loans issued",
		}),
		LoansRenewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "libripal_circulation_loans_renewed_total",
			Help: "Total loans renewed",
		}),
		LoansReturned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "libripal_circulation_loans_returned_total",
			Help: "Total loans returned",
		}),
		PolicyDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "libripal_circulation_policy_denials_total",
			Help: "Lending requests denied by policy, by reason",
		}, []string{"reason"}), // reason: "loan_limit", "duplicate", "renewal_limit", "too_overdue", "not_found"
		FinesFrozen: promauto.NewCounter(prometheus.CounterOpts{
			Name: "libripal_circulation_fine_units_frozen_total",
			Help: "Fine units frozen onto loans at return time",
		}),
	}
}

// IncrementLoansIssued records one issued loan.
func (m *Metrics) IncrementLoansIssued() {
	if m != nil {
		m.LoansIssued.Inc()
	}
}

// IncrementLoansRenewed records one renewed loan.
func (m *Metrics) IncrementLoansRenewed() {
	if m != nil {
		m.LoansRenewed.Inc()
	}
}

// IncrementLoansReturned records one returned loan.
func (m *Metrics) IncrementLoansReturned() {
	if m != nil {
		m.LoansReturned.Inc()
	}
}

// IncrementPolicyDenial records one policy denial.
func (m *Metrics) IncrementPolicyDenial(reason string) {
	if m != nil {
		m.PolicyDenials.WithLabelValues(reason).Inc()
	}
}

// AddFinesFrozen records fine units frozen at return time.
func (m *Metrics) AddFinesFrozen(units int64) {
	if m != nil {
		m.FinesFrozen.Add(float64(units))
	}
}
