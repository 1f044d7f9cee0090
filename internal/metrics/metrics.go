// Package metrics exposes Prometheus instrumentation for the engine.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "adaptest"

// Metrics holds the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	responses         *prometheus.CounterVec
	substitutions     prometheus.Counter
	iterations        prometheus.Histogram
	finalSE           prometheus.Histogram
	questionsAsked    prometheus.Histogram
	calibrations      *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Sessions created.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "completed_total",
			Help:      "Sessions completed, by stop reason.",
		}, []string{"reason"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "responses_total",
			Help:      "Submitted responses, by correctness.",
		}, []string{"correct"}),
		substitutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selector",
			Name:      "exposure_substitutions_total",
			Help:      "Items replaced by exposure control.",
		}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "estimator",
			Name:      "iterations",
			Help:      "Newton-Raphson iterations per estimate.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 50},
		}),
		finalSE: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "final_standard_error",
			Help:      "Standard error of the ability estimate at completion.",
			Buckets:   []float64{0.2, 0.3, 0.4, 0.5, 0.75, 1, 2, 5},
		}),
		questionsAsked: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "questions_answered",
			Help:      "Questions answered per completed session.",
			Buckets:   prometheus.LinearBuckets(5, 5, 8),
		}),
		calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "runs_total",
			Help:      "Item calibrations, by result status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.sessionsStarted,
		m.sessionsCompleted,
		m.responses,
		m.substitutions,
		m.iterations,
		m.finalSE,
		m.questionsAsked,
		m.calibrations,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *Metrics) SessionCompleted(reason string, answered int, se float64) {
	if m == nil {
		return
	}
	m.sessionsCompleted.WithLabelValues(reason).Inc()
	m.questionsAsked.Observe(float64(answered))
	m.finalSE.Observe(se)
}

func (m *Metrics) ResponseRecorded(correct bool, iterations int) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(fmt.Sprint(correct)).Inc()
	m.iterations.Observe(float64(iterations))
}

func (m *Metrics) ExposureSubstituted() {
	if m == nil {
		return
	}
	m.substitutions.Inc()
}

func (m *Metrics) Calibrated(status string) {
	if m == nil {
		return
	}
	m.calibrations.WithLabelValues(status).Inc()
}

// WriteText writes every collected family in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, f := range families {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encode %s: %w", f.GetName(), err)
		}
	}
	return nil
}
