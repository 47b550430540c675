package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/features"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
)

type SubmitApplicationUseCase struct {
	queue    ports.SubmissionQueue
	pipeline features.Pipeline
}

func NewSubmitApplicationUseCase(queue ports.SubmissionQueue, pipeline features.Pipeline) *SubmitApplicationUseCase {
	return &SubmitApplicationUseCase{queue: queue, pipeline: pipeline}
}

// Submit validates the applicant up front and queues it for a worker.
func (uc *SubmitApplicationUseCase) Submit(ctx context.Context, raw domain.Applicant) (*domain.Submission, error) {
	applicant, err := uc.pipeline.Normalize(raw)
	if err != nil {
		return nil, err
	}
	submission := domain.Submission{
		ID:          uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
		Applicant:   applicant,
	}
	if err := uc.queue.PublishSubmission(ctx, submission); err != nil {
		return nil, fmt.Errorf("publish submission: %w", err)
	}
	return &submission, nil
}

type ProcessSubmissionUseCase struct {
	predictor *PredictUseCase
}

func NewProcessSubmissionUseCase(predictor *PredictUseCase) *ProcessSubmissionUseCase {
	return &ProcessSubmissionUseCase{predictor: predictor}
}

// Handle scores a queued submission and returns the recorded prediction. A prediction in which
// every model failed is returned together with a temporary error.
func (uc *ProcessSubmissionUseCase) Handle(ctx context.Context, submission domain.Submission) (*domain.Prediction, error) {
	prediction, err := uc.predictor.PredictSubmission(ctx, submission)
	if err != nil {
		return nil, err
	}
	if prediction.Failed() {
		return prediction, domain.WrapError(domain.ErrTemporary, "process submission", errors.New("no model produced a prediction"))
	}
	slog.Debug("submission_processed", "submission_id", submission.ID, "model_errors", len(prediction.Errors))
	return prediction, nil
}
