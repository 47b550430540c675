package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/features"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
)

type PredictConfig struct {
	Classifier        domain.ModelRef
	Regressor         domain.ModelRef
	AnnualRate        float64
	CoverageWarnRatio float64
	Labels            features.LabelTable
}

// PredictionObserver receives per-model outcomes and feature coverage.
type PredictionObserver interface {
	ObserveInference(role domain.ModelRole, status string, duration time.Duration)
	ObserveCoverage(ratio float64)
}

// PredictDeps are optional collaborators; nil fields are skipped.
type PredictDeps struct {
	Cache    ports.PredictionCache
	Store    ports.PredictionStore
	Events   ports.EventPublisher
	Observer PredictionObserver
}

type PredictUseCase struct {
	pipeline features.Pipeline
	models   *ModelCache
	cfg      PredictConfig
	deps     PredictDeps
}

func NewPredictUseCase(pipeline features.Pipeline, models *ModelCache, cfg PredictConfig, deps PredictDeps) *PredictUseCase {
	if cfg.Labels == nil {
		cfg.Labels = features.DefaultLabelTable()
	}
	if cfg.AnnualRate < 0 {
		cfg.AnnualRate = features.DefaultAnnualRate
	}
	return &PredictUseCase{
		pipeline: pipeline,
		models:   models,
		cfg:      cfg,
		deps:     deps,
	}
}

func (uc *PredictUseCase) Schema() domain.TrainedSchema {
	return uc.pipeline.Schema
}

func (uc *PredictUseCase) EstimateEMI(principal float64, months int) float64 {
	return features.RoundCurrency(features.TenureEMI(principal, uc.cfg.AnnualRate, months))
}

// Predict evaluates the applicant and records the outcome. Validation and configuration
// errors fail the call; model failures are reported inside the returned prediction.
func (uc *PredictUseCase) Predict(ctx context.Context, applicant domain.Applicant) (*domain.Prediction, error) {
	return uc.predict(ctx, applicant, "")
}

// PredictSubmission is Predict for a queued submission; the prediction takes the submission ID.
func (uc *PredictUseCase) PredictSubmission(ctx context.Context, submission domain.Submission) (*domain.Prediction, error) {
	return uc.predict(ctx, submission.Applicant, submission.ID)
}

func (uc *PredictUseCase) predict(ctx context.Context, applicant domain.Applicant, id string) (*domain.Prediction, error) {
	prediction, err := uc.Evaluate(ctx, applicant)
	if err != nil {
		return nil, err
	}
	if id != "" {
		prediction.ID = id
	}
	uc.record(ctx, prediction)
	return prediction, nil
}

// Evaluate runs the pipeline and both models without persisting or publishing anything.
func (uc *PredictUseCase) Evaluate(ctx context.Context, raw domain.Applicant) (*domain.Prediction, error) {
	applicant, err := uc.pipeline.Normalize(raw)
	if err != nil {
		return nil, err
	}

	vector, err := uc.pipeline.Build(applicant)
	if err != nil {
		return nil, fmt.Errorf("build feature vector: %w", err)
	}
	coverage := uc.observeCoverage(vector)

	prediction := &domain.Prediction{
		ID:          uuid.NewString(),
		RequestedAt: time.Now().UTC(),
		Variant:     string(uc.pipeline.Variant),
		TenureEMI:   uc.EstimateEMI(applicant.RequestedAmount, applicant.RequestedTenure),
		AnnualRate:  uc.cfg.AnnualRate,
		Coverage:    coverage,
		Applicant:   applicant,
	}

	uc.classify(ctx, vector, prediction)
	uc.regress(ctx, vector, prediction)
	return prediction, nil
}

func (uc *PredictUseCase) classify(ctx context.Context, vector domain.FeatureVector, prediction *domain.Prediction) {
	raw, version, err := uc.infer(ctx, domain.RoleClassifier, uc.cfg.Classifier, vector)
	if err != nil {
		prediction.Errors = append(prediction.Errors, newModelError(domain.RoleClassifier, uc.cfg.Classifier, err))
		return
	}

	label, known := uc.cfg.Labels.Decode(raw)
	if !known {
		slog.Warn("unknown_classifier_label", "model", uc.cfg.Classifier.Name, "label", raw.Key())
	}
	prediction.Eligibility = &domain.EligibilityResult{
		Label:        label,
		Display:      label.Display(),
		Raw:          raw.Key(),
		ModelVersion: version.Version,
	}
}

func (uc *PredictUseCase) regress(ctx context.Context, vector domain.FeatureVector, prediction *domain.Prediction) {
	raw, version, err := uc.infer(ctx, domain.RoleRegressor, uc.cfg.Regressor, vector)
	if err == nil {
		var amount float64
		amount, err = raw.Float()
		if err == nil {
			prediction.MaxEMI = &domain.MaxEMIResult{
				Amount:       features.RoundCurrency(amount),
				ModelVersion: version.Version,
			}
			return
		}
		err = domain.WrapError(domain.ErrInference, "decode regressor output", err)
	}
	prediction.Errors = append(prediction.Errors, newModelError(domain.RoleRegressor, uc.cfg.Regressor, err))
}

func (uc *PredictUseCase) infer(
	ctx context.Context,
	role domain.ModelRole,
	ref domain.ModelRef,
	vector domain.FeatureVector,
) (domain.RawPrediction, domain.ModelVersion, error) {
	start := time.Now()

	model, err := uc.models.Get(ctx, ref)
	if err != nil {
		uc.observeInference(role, "unavailable", start)
		return domain.RawPrediction{}, domain.ModelVersion{}, err
	}
	version := model.Version()

	if uc.deps.Cache != nil {
		cached, ok, cacheErr := uc.deps.Cache.Get(ctx, version, vector)
		if cacheErr != nil {
			slog.Warn("prediction_cache_get_failed", "model", ref.Name, "error", cacheErr)
		}
		if ok {
			uc.observeInference(role, "cached", start)
			return cached, version, nil
		}
	}

	raw, err := model.Predict(ctx, vector)
	if err != nil {
		uc.observeInference(role, "error", start)
		if !domain.IsKind(err, domain.ErrInference) {
			err = domain.WrapError(domain.ErrInference, "predict "+ref.String(), err)
		}
		return domain.RawPrediction{}, version, err
	}
	uc.observeInference(role, "success", start)

	if uc.deps.Cache != nil {
		if err := uc.deps.Cache.Set(ctx, version, vector, raw); err != nil {
			slog.Warn("prediction_cache_set_failed", "model", ref.Name, "error", err)
		}
	}
	return raw, version, nil
}

func (uc *PredictUseCase) observeCoverage(vector domain.FeatureVector) float64 {
	coverage := features.Coverage(vector)
	if uc.deps.Observer != nil {
		uc.deps.Observer.ObserveCoverage(coverage)
	}
	if coverage < uc.cfg.CoverageWarnRatio {
		slog.Warn("low_feature_coverage",
			"coverage", coverage,
			"populated", vector.Populated,
			"columns", vector.Len(),
		)
	}
	return coverage
}

func (uc *PredictUseCase) observeInference(role domain.ModelRole, status string, start time.Time) {
	if uc.deps.Observer != nil {
		uc.deps.Observer.ObserveInference(role, status, time.Since(start))
	}
}

// record persists and publishes the prediction. Neither is critical to the caller.
func (uc *PredictUseCase) record(ctx context.Context, prediction *domain.Prediction) {
	if uc.deps.Store != nil {
		if err := uc.deps.Store.SavePrediction(ctx, prediction); err != nil {
			slog.Warn("prediction_save_failed", "prediction_id", prediction.ID, "error", err)
		}
	}
	if uc.deps.Events != nil {
		if err := uc.deps.Events.PublishPrediction(ctx, prediction); err != nil {
			slog.Warn("prediction_publish_failed", "prediction_id", prediction.ID, "error", err)
		}
	}
	slog.Info("prediction_completed",
		"prediction_id", prediction.ID,
		"eligible", prediction.Eligibility != nil,
		"max_emi", prediction.MaxEMI != nil,
		"model_errors", len(prediction.Errors),
		"coverage", prediction.Coverage,
	)
}

func newModelError(role domain.ModelRole, ref domain.ModelRef, err error) domain.ModelError {
	return domain.ModelError{
		Role:    role,
		Model:   ref.Name,
		Stage:   ref.Stage,
		Kind:    domain.KindName(err),
		Message: publicMessage(err),
	}
}

// publicMessage strips endpoint URLs and filesystem paths from err before it reaches a client.
func publicMessage(err error) string {
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.URL != "" {
		msg = strings.ReplaceAll(msg, urlErr.URL, "[model endpoint]")
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && pathErr.Path != "" {
		msg = strings.ReplaceAll(msg, pathErr.Path, "[path]")
	}
	return msg
}
