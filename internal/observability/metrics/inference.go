package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// InferenceMetrics records model loads, per-model inference outcomes, feature coverage and
// circuit breaker transitions.
type InferenceMetrics struct {
	service string

	inferenceTotal    *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	coverage          prometheus.Histogram
	modelLoads        *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

func NewInferenceMetrics(service string, registry prometheus.Registerer) *InferenceMetrics {
	inferenceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emi",
			Subsystem: "model",
			Name:      "inference_total",
			Help:      "Model inferences by role and status (success, cached, error, unavailable).",
		},
		[]string{"service", "role", "status"},
	)
	inferenceDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "emi",
			Subsystem: "model",
			Name:      "inference_duration_seconds",
			Help:      "Model inference duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"service", "role"},
	)
	coverage := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "emi",
			Subsystem:   "features",
			Name:        "coverage_ratio",
			Help:        "Share of trained schema columns populated from the request.",
			Buckets:     []float64{0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	modelLoads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emi",
			Subsystem: "model",
			Name:      "loads_total",
			Help:      "Registry model loads by model and status.",
		},
		[]string{"service", "model", "stage", "status"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "emi",
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker for an operation is not closed.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(inferenceTotal, inferenceDuration, coverage, modelLoads, breakerState)

	return &InferenceMetrics{
		service:           service,
		inferenceTotal:    inferenceTotal,
		inferenceDuration: inferenceDuration,
		coverage:          coverage,
		modelLoads:        modelLoads,
		breakerState:      breakerState,
	}
}

func (m *InferenceMetrics) ObserveInference(role domain.ModelRole, status string, duration time.Duration) {
	m.inferenceTotal.WithLabelValues(m.service, string(role), status).Inc()
	if status == "success" || status == "error" {
		m.inferenceDuration.WithLabelValues(m.service, string(role)).Observe(duration.Seconds())
	}
}

func (m *InferenceMetrics) ObserveCoverage(ratio float64) {
	m.coverage.Observe(ratio)
}

func (m *InferenceMetrics) ObserveModelLoad(ref domain.ModelRef, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.modelLoads.WithLabelValues(m.service, ref.Name, ref.Stage, status).Inc()
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *InferenceMetrics) ObserveBreakerState(operation, _, to string) {
	open := 0.0
	if to != "closed" {
		open = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(open)
}
