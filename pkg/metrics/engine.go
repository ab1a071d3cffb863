package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestionMetrics counts snapshot diff outcomes.
type IngestionMetrics struct {
	diff *prometheus.CounterVec
	runs *prometheus.CounterVec
}

// NewIngestionMetrics registers the ingestion counters on the provided registerer.
func NewIngestionMetrics(reg prometheus.Registerer) *IngestionMetrics {
	if reg == nil {
		return &IngestionMetrics{}
	}
	diff := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_diff_records_total",
		Help: "Vehicle ids per diff kind across ingestion runs.",
	}, []string{"kind"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_runs_total",
		Help: "Ingestion runs by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(diff, runs)
	return &IngestionMetrics{diff: diff, runs: runs}
}

// ObserveDiff adds the per-kind id counts of one committed run.
func (m *IngestionMetrics) ObserveDiff(added, removed, changed int) {
	if m == nil || m.diff == nil {
		return
	}
	m.diff.WithLabelValues("added").Add(float64(added))
	m.diff.WithLabelValues("removed").Add(float64(removed))
	m.diff.WithLabelValues("changed").Add(float64(changed))
}

// IncRun counts a finished run. Outcome is succeeded, failed or refused.
func (m *IngestionMetrics) IncRun(outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ReactorMetrics counts rule executions.
type ReactorMetrics struct {
	executions *prometheus.CounterVec
}

// NewReactorMetrics registers the reactor counters on the provided registerer.
func NewReactorMetrics(reg prometheus.Registerer) *ReactorMetrics {
	if reg == nil {
		return &ReactorMetrics{}
	}
	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reactor_rule_executions_total",
		Help: "Reactor rule executions by rule and result.",
	}, []string{"rule", "result"})
	reg.MustRegister(executions)
	return &ReactorMetrics{executions: executions}
}

// ObserveRule records one rule execution.
func (m *ReactorMetrics) ObserveRule(rule string, err error) {
	if m == nil || m.executions == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.executions.WithLabelValues(normalizeLabel(rule), result).Inc()
}
