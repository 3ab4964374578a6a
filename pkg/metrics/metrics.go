// Package metrics exposes Prometheus collectors for linking decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Linking outcome label values.
const (
	OutcomeLinked    = "linked"
	OutcomeSuggested = "suggested"
	OutcomeOrphan    = "orphan"
	OutcomeConflict  = "conflict"
	OutcomeNoAction  = "no_action"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	Repairs         prometheus.Counter
	AuditFailures   prometheus.Counter
	BatchItemErrors prometheus.Counter
}

// New creates and registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkage",
			Name:      "linking_decisions_total",
			Help:      "Linking decisions by outcome.",
		}, []string{"outcome"}),
		Repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "linkage",
			Name:      "cross_link_repairs_total",
			Help:      "Cross-links repaired by the reconciliation engine.",
		}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "linkage",
			Name:      "audit_write_failures_total",
			Help:      "Audit sink writes that failed; linking decisions proceed regardless.",
		}),
		BatchItemErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "linkage",
			Name:      "batch_item_errors_total",
			Help:      "Single-item failures inside batch operations.",
		}),
	}
	reg.MustRegister(m.Decisions, m.Repairs, m.AuditFailures, m.BatchItemErrors)
	return m
}

// NewNop returns metrics registered on a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
