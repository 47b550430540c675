package usecase

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"strings"
	"testing"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/features"
)

func TestPredictBothModelsSucceed(t *testing.T) {
	store := &storeFake{}
	events := &publisherFake{}
	observer := &observerFake{}
	uc := newTestPredictor(healthyRegistry(), PredictDeps{Store: store, Events: events, Observer: observer})

	p, err := uc.Predict(context.Background(), features.ReferenceApplicant())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected prediction id")
	}
	if p.Eligibility == nil || p.Eligibility.Label != domain.EligibilityEligible || p.Eligibility.ModelVersion != "3" {
		t.Fatalf("unexpected eligibility: %+v", p.Eligibility)
	}
	if p.MaxEMI == nil || p.MaxEMI.Amount != 18250.46 {
		t.Fatalf("unexpected max emi: %+v", p.MaxEMI)
	}
	if p.TenureEMI != 11536.23 {
		t.Fatalf("expected tenure emi 11536.23, got %v", p.TenureEMI)
	}
	if p.Coverage != 1 || p.Degraded() {
		t.Fatalf("expected full coverage and no errors, got %v %+v", p.Coverage, p.Errors)
	}
	if len(store.saved) != 1 || len(events.published) != 1 || events.published[0] != p.ID {
		t.Fatalf("expected prediction saved and published once")
	}
	if observer.inference["classifier:success"] != 1 || observer.inference["regressor:success"] != 1 {
		t.Fatalf("unexpected inference observations: %v", observer.inference)
	}
}

func TestPredictMissingProductionVersionDegradesOneModel(t *testing.T) {
	reg := healthyRegistry()
	delete(reg.models, classifierRef)
	uc := newTestPredictor(reg, PredictDeps{})

	p, err := uc.Predict(context.Background(), features.ReferenceApplicant())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if p.Eligibility != nil {
		t.Fatalf("expected no eligibility result")
	}
	if p.MaxEMI == nil {
		t.Fatalf("expected regressor to still predict")
	}
	if len(p.Errors) != 1 {
		t.Fatalf("expected one model error, got %+v", p.Errors)
	}
	e := p.Errors[0]
	if e.Role != domain.RoleClassifier || e.Kind != "model_unavailable" || e.Model != classifierRef.Name || e.Stage != domain.StageProduction {
		t.Fatalf("unexpected model error: %+v", e)
	}
	if p.Failed() {
		t.Fatalf("prediction with one model result must not report failed")
	}
}

func TestPredictInferenceErrorHidesEndpoint(t *testing.T) {
	reg := healthyRegistry()
	reg.models[regressorRef].err = &url.Error{
		Op:  "Post",
		URL: "http://10.1.2.3:5001/invocations",
		Err: errors.New("connection refused"),
	}
	uc := newTestPredictor(reg, PredictDeps{})

	p, err := uc.Predict(context.Background(), features.ReferenceApplicant())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if p.MaxEMI != nil || p.Eligibility == nil {
		t.Fatalf("expected only regressor to fail")
	}
	e := p.Errors[0]
	if e.Kind != "inference" {
		t.Fatalf("expected inference kind, got %s", e.Kind)
	}
	if strings.Contains(e.Message, "10.1.2.3") {
		t.Fatalf("model error leaks endpoint: %s", e.Message)
	}
}

func TestPublicMessageHidesPaths(t *testing.T) {
	err := domain.WrapError(domain.ErrModelUnavailable, "load", &fs.PathError{Op: "open", Path: "/srv/models/clf.pkl", Err: fs.ErrNotExist})
	if msg := publicMessage(err); strings.Contains(msg, "/srv/models") {
		t.Fatalf("message leaks path: %s", msg)
	}
}

func TestPredictNonNumericRegressorOutputIsInferenceError(t *testing.T) {
	reg := healthyRegistry()
	reg.models[regressorRef].out = domain.RawPrediction{Value: "n/a"}
	uc := newTestPredictor(reg, PredictDeps{})

	p, err := uc.Predict(context.Background(), features.ReferenceApplicant())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if p.MaxEMI != nil || len(p.Errors) != 1 || p.Errors[0].Kind != "inference" {
		t.Fatalf("unexpected result: %+v %+v", p.MaxEMI, p.Errors)
	}
}

func TestPredictBothModelsFailStillReturnsBody(t *testing.T) {
	uc := newTestPredictor(newRegistryFake(), PredictDeps{})

	p, err := uc.Predict(context.Background(), features.ReferenceApplicant())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if !p.Failed() || len(p.Errors) != 2 {
		t.Fatalf("expected both models failed, got %+v", p.Errors)
	}
	if p.TenureEMI == 0 {
		t.Fatalf("tenure emi is computed without models")
	}
}

func TestPredictValidationErrorHalts(t *testing.T) {
	reg := healthyRegistry()
	store := &storeFake{}
	uc := newTestPredictor(reg, PredictDeps{Store: store})

	applicant := features.ReferenceApplicant()
	applicant.CreditScore = 100

	_, err := uc.Predict(context.Background(), applicant)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if reg.models[classifierRef].calls.Load() != 0 || len(store.saved) != 0 {
		t.Fatalf("models and store must not be touched on validation failure")
	}
}

func TestPredictStandardVariantWithoutMaxEMIIsRejected(t *testing.T) {
	reg := healthyRegistry()
	uc := newTestPredictor(reg, PredictDeps{})

	applicant := features.ReferenceApplicant()
	applicant.MaxMonthlyEMI = nil

	_, err := uc.Predict(context.Background(), applicant)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "max_monthly_emi" {
		t.Fatalf("expected max_monthly_emi validation error, got %v", err)
	}
	if reg.models[regressorRef].calls.Load() != 0 {
		t.Fatalf("models must not be called for a rejected applicant")
	}
}

func TestPredictEmptySchemaIsConfigurationError(t *testing.T) {
	uc := NewPredictUseCase(features.Pipeline{}, NewModelCache(healthyRegistry(), nil), PredictConfig{}, PredictDeps{})

	_, err := uc.Predict(context.Background(), features.ReferenceApplicant())
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPredictRecordFailuresAreNotCritical(t *testing.T) {
	uc := newTestPredictor(healthyRegistry(), PredictDeps{
		Store:  &storeFake{err: errors.New("db down")},
		Events: &publisherFake{err: errors.New("nats down")},
	})

	p, err := uc.Predict(context.Background(), features.ReferenceApplicant())
	if err != nil {
		t.Fatalf("expected success despite record failures, got %v", err)
	}
	if p.Eligibility == nil || p.MaxEMI == nil {
		t.Fatalf("expected both results")
	}
}

func TestPredictUsesPredictionCache(t *testing.T) {
	reg := healthyRegistry()
	cache := &cacheFake{}
	observer := &observerFake{}
	uc := newTestPredictor(reg, PredictDeps{Cache: cache, Observer: observer})

	for i := 0; i < 3; i++ {
		if _, err := uc.Predict(context.Background(), features.ReferenceApplicant()); err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
	}
	if got := reg.models[classifierRef].calls.Load(); got != 1 {
		t.Fatalf("expected a single classifier call, got %d", got)
	}
	if cache.sets != 2 {
		t.Fatalf("expected two cache writes, got %d", cache.sets)
	}
	if observer.inference["classifier:cached"] != 2 {
		t.Fatalf("unexpected inference observations: %v", observer.inference)
	}
}

func TestPredictDecodesStringLabels(t *testing.T) {
	reg := healthyRegistry()
	reg.models[classifierRef].out = domain.RawPrediction{Value: []any{"high_risk"}}
	uc := newTestPredictor(reg, PredictDeps{})

	p, err := uc.Predict(context.Background(), features.ReferenceApplicant())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if p.Eligibility.Label != domain.EligibilityHighRisk || p.Eligibility.Display != "High Risk" {
		t.Fatalf("unexpected eligibility: %+v", p.Eligibility)
	}
}

func TestEstimateEMI(t *testing.T) {
	uc := newTestPredictor(healthyRegistry(), PredictDeps{})
	if got := uc.EstimateEMI(250000, 24); got != 11536.23 {
		t.Fatalf("expected 11536.23, got %v", got)
	}
}
