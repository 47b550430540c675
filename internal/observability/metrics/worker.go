package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// WorkerMetrics tracks queued loan applications as the worker scores them.
type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	modelFailures   *prometheus.CounterVec
	lastScored      prometheus.Gauge
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emi",
			Subsystem: "worker",
			Name:      "submission_process_total",
			Help:      "Queued applications handled, by outcome and feature variant. degraded means one of the two models failed.",
		},
		[]string{"service", "status", "variant"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "emi",
			Subsystem: "worker",
			Name:      "submission_process_duration_seconds",
			Help:      "Time from picking up a queued application to its prediction being recorded, by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "emi",
			Subsystem: "worker",
			Name:      "submission_process_in_flight",
			Help:      "Queued applications currently being scored.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	modelFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emi",
			Subsystem: "worker",
			Name:      "submission_model_failures_total",
			Help:      "Per-model failures recorded inside submission predictions, by model role and error kind.",
		},
		[]string{"service", "role", "kind"},
	)
	lastScored := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "emi",
			Subsystem: "worker",
			Name:      "submission_last_scored_timestamp_seconds",
			Help:      "Unix time of the last application at least one model scored.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "emi",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between an application being submitted through the API and a worker starting to score it.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, modelFailures, lastScored, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		modelFailures:   modelFailures,
		lastScored:      lastScored,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartSubmission() {
	m.processInFlight.Inc()
}

// FinishSubmission records the outcome of one queued application. prediction may be nil when
// the application never reached the models.
func (m *WorkerMetrics) FinishSubmission(service string, duration time.Duration, prediction *domain.Prediction, err error) {
	m.processInFlight.Dec()

	status := submissionStatus(prediction, err)
	variant := "unknown"
	if prediction != nil {
		if prediction.Variant != "" {
			variant = prediction.Variant
		}
		for _, modelErr := range prediction.Errors {
			m.modelFailures.WithLabelValues(service, string(modelErr.Role), modelErr.Kind).Inc()
		}
		if !prediction.Failed() {
			m.lastScored.SetToCurrentTime()
		}
	}

	m.processTotal.WithLabelValues(service, status, variant).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

// submissionStatus is success, degraded, invalid, temporary or error.
func submissionStatus(prediction *domain.Prediction, err error) string {
	switch {
	case err == nil && prediction != nil && prediction.Degraded():
		return "degraded"
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "error"
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
