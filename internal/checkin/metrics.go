package checkin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts decisions and reconciliation activity.
type Metrics struct {
	decisions      *prometheus.CounterVec
	decideLatency  prometheus.Histogram
	ledgerRepairs  prometheus.Counter
	ledgerMismatch prometheus.Counter
}

// NewMetrics registers the check-in metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gympass_checkin_decisions_total",
			Help: "Check-in decisions by outcome (admitted or a reason code).",
		}, []string{"outcome"}),
		decideLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gympass_checkin_decide_seconds",
			Help:    "Latency of the eligibility decision including the record write.",
			Buckets: prometheus.DefBuckets,
		}),
		ledgerRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gympass_ledger_repairs_total",
			Help: "Ledger entries re-created by the reconciliation worker.",
		}),
		ledgerMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gympass_ledger_mismatches_total",
			Help: "Dual-write mismatches the reconciliation worker could not repair.",
		}),
	}
	reg.MustRegister(m.decisions, m.decideLatency, m.ledgerRepairs, m.ledgerMismatch)
	return m
}

// RecordDecision counts one decision.
func (m *Metrics) RecordDecision(d Decision, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "admitted"
	if !d.Admitted {
		outcome = string(d.Reason)
	}
	m.decisions.WithLabelValues(outcome).Inc()
	m.decideLatency.Observe(elapsed.Seconds())
}

// RecordRepair counts one reconciliation repair.
func (m *Metrics) RecordRepair() {
	if m == nil {
		return
	}
	m.ledgerRepairs.Inc()
}

// RecordMismatch counts an unrepairable mismatch.
func (m *Metrics) RecordMismatch() {
	if m == nil {
		return
	}
	m.ledgerMismatch.Inc()
}
