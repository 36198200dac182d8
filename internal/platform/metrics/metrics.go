// Package metrics exposes Prometheus collectors for the triage service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "afiya"

type Metrics struct {
	registry    *prometheus.Registry
	diagnoses   *prometheus.CounterVec
	latency     prometheus.Histogram
	redFlags    *prometheus.CounterVec
	analysis    *prometheus.CounterVec
	logFailures prometheus.Counter
	alerts      *prometheus.CounterVec
	ingested    prometheus.Counter
	modelState  *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		diagnoses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnoses_total",
			Help:      "Completed diagnoses by detected language and highest red-flag severity.",
		}, []string{"language", "severity"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diagnosis_duration_seconds",
			Help:      "End-to-end diagnosis latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		redFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "red_flags_total",
			Help:      "Red flags raised by category.",
		}, []string{"category"}),
		analysis: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Generative analysis attempts by outcome.",
		}, []string{"outcome"}),
		logFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnosis_log_failures_total",
			Help:      "Diagnosis log records that could not be stored.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergency_alerts_total",
			Help:      "Emergency alerts by outcome.",
		}, []string{"outcome"}),
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_points_ingested_total",
			Help:      "Condition vectors written to the knowledge base.",
		}),
		modelState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_load_state",
			Help:      "1 for the current generative model load state.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.diagnoses, m.latency, m.redFlags, m.analysis,
		m.logFailures, m.alerts, m.ingested, m.modelState,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveDiagnosis(language, severity string, d time.Duration) {
	if m == nil {
		return
	}
	if severity == "" {
		severity = "NONE"
	}
	m.diagnoses.WithLabelValues(language, severity).Inc()
	m.latency.Observe(d.Seconds())
}

func (m *Metrics) RedFlag(category string) {
	if m == nil {
		return
	}
	m.redFlags.WithLabelValues(category).Inc()
}

// Analysis counts a generation outcome: ok, skipped or failed.
func (m *Metrics) Analysis(outcome string) {
	if m == nil {
		return
	}
	m.analysis.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LogFailure() {
	if m == nil {
		return
	}
	m.logFailures.Inc()
}

func (m *Metrics) Alert(outcome string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Ingested(n int) {
	if m == nil {
		return
	}
	m.ingested.Add(float64(n))
}

// SetModelState marks state as current and clears the others.
func (m *Metrics) SetModelState(state string, all ...string) {
	if m == nil {
		return
	}
	for _, s := range all {
		m.modelState.WithLabelValues(s).Set(0)
	}
	m.modelState.WithLabelValues(state).Set(1)
}
