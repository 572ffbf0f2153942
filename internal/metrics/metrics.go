package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/subtext/internal/safety"
)

// Metrics exposes counters for parsing and safety analysis. All methods are
// safe on a nil receiver.
type Metrics struct {
	parseTotal          *prometheus.CounterVec
	analysisTotal       *prometheus.CounterVec
	flagsTotal          *prometheus.CounterVec
	collaboratorFailure prometheus.Counter
	analysisLatency     prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		parseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subtext",
			Subsystem: "transcript",
			Name:      "parse_total",
			Help:      "Transcript parses by detected format and outcome",
		}, []string{"format", "outcome"}),
		analysisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subtext",
			Subsystem: "safety",
			Name:      "analysis_total",
			Help:      "Completed safety analyses by overall risk",
		}, []string{"overall_risk"}),
		flagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subtext",
			Subsystem: "safety",
			Name:      "flags_total",
			Help:      "Flags surviving aggregation by type and severity",
		}, []string{"type", "severity"}),
		collaboratorFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subtext",
			Subsystem: "safety",
			Name:      "collaborator_failures_total",
			Help:      "Analyses aborted because the flag generator failed",
		}),
		analysisLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "subtext",
			Subsystem: "safety",
			Name:      "analysis_seconds",
			Help:      "Latency of completed safety analyses",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.parseTotal, m.analysisTotal, m.flagsTotal, m.collaboratorFailure, m.analysisLatency)
	return m
}

// ObserveParse records one parse attempt. outcome is "ok" or an error kind.
func (m *Metrics) ObserveParse(format, outcome string) {
	if m == nil {
		return
	}
	m.parseTotal.WithLabelValues(format, outcome).Inc()
}

func (m *Metrics) ObserveAnalysis(a *safety.Analysis, seconds float64) {
	if m == nil || a == nil {
		return
	}
	m.analysisTotal.WithLabelValues(a.OverallRisk.String()).Inc()
	for _, f := range a.Flags {
		m.flagsTotal.WithLabelValues(flagLabels(f)).Inc()
	}
	m.analysisLatency.Observe(seconds)
}

func (m *Metrics) ObserveCollaboratorFailure() {
	if m == nil {
		return
	}
	m.collaboratorFailure.Inc()
}

// otherLabel replaces flag types and severities outside the known sets, which
// the model is free to invent.
const otherLabel = "other"

func flagLabels(f safety.RiskFlag) (string, string) {
	typ, sev := string(f.Type), string(f.Severity)
	if !f.Type.Known() {
		typ = otherLabel
	}
	if !f.Severity.Valid() {
		sev = otherLabel
	}
	return typ, sev
}
