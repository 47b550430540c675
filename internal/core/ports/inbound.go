package ports

import (
	"context"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// Predictor is the inbound contract for a single eligibility + max EMI prediction.
type Predictor interface {
	Predict(ctx context.Context, applicant domain.Applicant) (*domain.Prediction, error)
	EstimateEMI(principal float64, months int) float64
}

// ModelInspector describes the models currently serving predictions.
type ModelInspector interface {
	Describe(ctx context.Context) []domain.ModelDescription
	Reload() []domain.ModelRef
}

// SchemaReader exposes the trained feature schema in use.
type SchemaReader interface {
	Schema() domain.TrainedSchema
}

// BatchScorer runs the prediction pipeline over a stored applicant dataset.
type BatchScorer interface {
	Score(ctx context.Context, dataset string, limit int) (*domain.ScoreDistribution, error)
}

// ApplicationSubmitter queues an applicant for asynchronous scoring.
type ApplicationSubmitter interface {
	Submit(ctx context.Context, applicant domain.Applicant) (*domain.Submission, error)
}
