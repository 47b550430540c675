package httpadapter

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

type predictorFake struct {
	prediction *domain.Prediction
	err        error
	calls      atomic.Int32
}

func (f *predictorFake) Predict(context.Context, domain.Applicant) (*domain.Prediction, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.prediction, nil
}

func (f *predictorFake) EstimateEMI(principal float64, months int) float64 {
	return principal / float64(months)
}

type schemaFake struct{}

func (schemaFake) Schema() domain.TrainedSchema {
	return domain.TrainedSchema{Columns: []domain.SchemaColumn{{Name: "age", Kind: domain.KindInteger}}}
}

type modelsFake struct {
	reloaded []domain.ModelRef
}

func (f *modelsFake) Describe(context.Context) []domain.ModelDescription {
	return []domain.ModelDescription{{
		Role:    domain.RoleClassifier,
		Ref:     domain.ModelRef{Name: "clf", Stage: "Production"},
		Version: &domain.ModelVersion{Name: "clf", Version: "3", Stage: "Production"},
	}}
}

func (f *modelsFake) Reload() []domain.ModelRef {
	return f.reloaded
}

type batchFake struct {
	distribution *domain.ScoreDistribution
	err          error
}

func (f batchFake) Score(context.Context, string, int) (*domain.ScoreDistribution, error) {
	return f.distribution, f.err
}

type submitterFake struct {
	err error
}

func (f submitterFake) Submit(_ context.Context, applicant domain.Applicant) (*domain.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Submission{ID: "sub-1", SubmittedAt: time.Unix(0, 0).UTC(), Applicant: applicant}, nil
}

type readerFake struct {
	predictions map[string]*domain.Prediction
}

func (f readerFake) GetPrediction(_ context.Context, id string) (*domain.Prediction, error) {
	p, ok := f.predictions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get prediction", errors.New("id="+id))
	}
	return p, nil
}
