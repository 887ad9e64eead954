package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics counts quote lifecycle events.
type WorkflowMetrics struct {
	transitions *prometheus.CounterVec
	claims      *prometheus.CounterVec
	conversions prometheus.Counter
}

// NewWorkflowMetrics registers the lifecycle metrics on the provided registerer.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_transitions_total",
		Help: "Quote status transitions applied.",
	}, []string{"from", "to"})
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_claims_total",
		Help: "Mechanic claim attempts by outcome.",
	}, []string{"outcome"})
	conversions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quote_conversions_total",
		Help: "Quotes converted into service orders.",
	})
	reg.MustRegister(transitions, claims, conversions)
	return &WorkflowMetrics{
		transitions: transitions,
		claims:      claims,
		conversions: conversions,
	}
}

// ObserveTransition records a status transition.
func (w *WorkflowMetrics) ObserveTransition(from, to string) {
	if w == nil || w.transitions == nil {
		return
	}
	w.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveClaim records a claim attempt outcome ("won" or "lost").
func (w *WorkflowMetrics) ObserveClaim(outcome string) {
	if w == nil || w.claims == nil {
		return
	}
	w.claims.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncConversion records a successful conversion.
func (w *WorkflowMetrics) IncConversion() {
	if w == nil || w.conversions == nil {
		return
	}
	w.conversions.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
