package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

func TestMiddlewareNormalizesPredictionPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, id := range []string{"a", "b"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/predictions/"+id, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/predictions/{prediction_id}", "404"))
	if got != 2 {
		t.Fatalf("expected 2 requests on normalized path, got %v", got)
	}
}

func TestInferenceMetricsShareRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	m := NewInferenceMetrics("api", httpMetrics.Registry())

	m.ObserveInference(domain.RoleClassifier, "success", 10*time.Millisecond)
	m.ObserveModelLoad(domain.ModelRef{Name: "clf", Stage: "Production"}, errors.New("down"))
	m.ObserveBreakerState("mlflow.invocations.clf", "closed", "open")
	m.ObserveCoverage(0.5)

	if got := testutil.ToFloat64(m.inferenceTotal.WithLabelValues("api", "classifier", "success")); got != 1 {
		t.Fatalf("expected one classifier success, got %v", got)
	}
	if got := testutil.ToFloat64(m.modelLoads.WithLabelValues("api", "clf", "Production", "error")); got != 1 {
		t.Fatalf("expected one failed load, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("api", "mlflow.invocations.clf")); got != 1 {
		t.Fatalf("expected open breaker gauge, got %v", got)
	}

	families, err := httpMetrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "emi_features_coverage_ratio" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected coverage histogram in shared registry")
	}
}

func TestWorkerMetricsStatusFromErrorKind(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartSubmission()
	m.FinishSubmission("worker", time.Millisecond, nil, domain.WrapError(domain.ErrTemporary, "process", errors.New("x")))

	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "temporary", "unknown")); got != 1 {
		t.Fatalf("expected one temporary failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("expected in-flight back to 0, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastScored); got != 0 {
		t.Fatalf("failed submission must not advance last scored time, got %v", got)
	}
}

func TestWorkerMetricsDegradedSubmissionCountsModelFailures(t *testing.T) {
	m := NewWorkerMetrics("worker")
	prediction := &domain.Prediction{
		Variant:     "standard",
		Eligibility: &domain.EligibilityResult{Label: domain.EligibilityEligible},
		Errors: []domain.ModelError{
			{Role: domain.RoleRegressor, Kind: "model_unavailable"},
		},
	}

	m.StartSubmission()
	m.FinishSubmission("worker", time.Millisecond, prediction, nil)

	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "degraded", "standard")); got != 1 {
		t.Fatalf("expected one degraded standard submission, got %v", got)
	}
	if got := testutil.ToFloat64(m.modelFailures.WithLabelValues("worker", "regressor", "model_unavailable")); got != 1 {
		t.Fatalf("expected one regressor failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastScored); got <= 0 {
		t.Fatalf("expected last scored time to be set, got %v", got)
	}
}

func TestWorkerMetricsSubmissionStatus(t *testing.T) {
	scored := &domain.Prediction{MaxEMI: &domain.MaxEMIResult{Amount: 100}}
	cases := []struct {
		name       string
		prediction *domain.Prediction
		err        error
		want       string
	}{
		{"success", scored, nil, "success"},
		{"invalid", nil, &domain.ValidationError{Field: "age", Reason: "is required"}, "invalid"},
		{"temporary", &domain.Prediction{}, domain.WrapError(domain.ErrTemporary, "process", errors.New("x")), "temporary"},
		{"error", nil, errors.New("boom"), "error"},
	}
	for _, tc := range cases {
		if got := submissionStatus(tc.prediction, tc.err); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
