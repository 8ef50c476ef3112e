package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operations
const (
	OpCheckIn  = "check_in"
	OpCheckOut = "check_out"
	OpCorrect  = "correct"
	OpRemove   = "remove"
)

// Outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeClockSkew = "clock_skew"
	OutcomeError     = "error"
)

type Metrics struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	evidenceBytes prometheus.Histogram
}

// New registers the attendance collectors, plus Go runtime and process
// collectors, on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_transitions_total",
			Help: "Attendance state transitions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		evidenceBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_evidence_bytes",
			Help:    "Size of stored attendance proof photos after compression.",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 8),
		}),
	}

	reg.MustRegister(
		m.transitions,
		m.evidenceBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveTransition(operation, outcome string) {
	m.transitions.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveEvidence(size int) {
	m.evidenceBytes.Observe(float64(size))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Transitions exposes the counter for assertions in tests
func (m *Metrics) Transitions() *prometheus.CounterVec {
	return m.transitions
}
