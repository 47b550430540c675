package ports

import (
	"context"
	"io"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// Model is a loaded, read-only model artifact.
type Model interface {
	Predict(ctx context.Context, vector domain.FeatureVector) (domain.RawPrediction, error)
	Version() domain.ModelVersion
	// Concurrent reports whether Predict may be called from several goroutines at once.
	Concurrent() bool
}

// ModelRegistry resolves registered models by name and stage.
type ModelRegistry interface {
	Resolve(ctx context.Context, ref domain.ModelRef) (domain.ModelVersion, error)
	Load(ctx context.Context, ref domain.ModelRef) (Model, error)
}

// PredictionStore persists an audit trail of served predictions.
type PredictionStore interface {
	SavePrediction(ctx context.Context, prediction *domain.Prediction) error
}

// PredictionReader looks up a previously served prediction.
type PredictionReader interface {
	GetPrediction(ctx context.Context, id string) (*domain.Prediction, error)
}

// PredictionCache memoises raw model outputs per model version and input vector.
type PredictionCache interface {
	Get(ctx context.Context, version domain.ModelVersion, vector domain.FeatureVector) (domain.RawPrediction, bool, error)
	Set(ctx context.Context, version domain.ModelVersion, vector domain.FeatureVector, prediction domain.RawPrediction) error
}

// EventPublisher announces completed predictions.
type EventPublisher interface {
	PublishPrediction(ctx context.Context, prediction *domain.Prediction) error
}

// SubmissionQueue carries applicant submissions to asynchronous workers.
type SubmissionQueue interface {
	PublishSubmission(ctx context.Context, submission domain.Submission) error
	SubscribeSubmissions(ctx context.Context, handler func(context.Context, domain.Submission) error) error
}

// ObjectStorage reads artifacts and datasets.
type ObjectStorage interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ApplicantDataset yields applicant rows from a stored dataset.
type ApplicantDataset interface {
	ReadApplicants(ctx context.Context, key string, limit int) ([]domain.Applicant, int, error)
}
