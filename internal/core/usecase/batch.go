package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
)

const maxBatchRows = 10000

type BatchScoreUseCase struct {
	dataset   ports.ApplicantDataset
	predictor *PredictUseCase
}

func NewBatchScoreUseCase(dataset ports.ApplicantDataset, predictor *PredictUseCase) *BatchScoreUseCase {
	return &BatchScoreUseCase{
		dataset:   dataset,
		predictor: predictor,
	}
}

// Score runs the prediction pipeline over up to limit rows of dataset and summarises the
// classifier label distribution and the regressor output. Rows that fail validation or
// parsing are counted as skipped. Nothing is persisted or published.
func (uc *BatchScoreUseCase) Score(ctx context.Context, dataset string, limit int) (*domain.ScoreDistribution, error) {
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return nil, &domain.ValidationError{Field: "dataset", Reason: "must not be empty"}
	}
	if limit <= 0 || limit > maxBatchRows {
		limit = maxBatchRows
	}

	applicants, skipped, err := uc.dataset.ReadApplicants(ctx, dataset, limit)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	out := &domain.ScoreDistribution{
		Dataset: dataset,
		Rows:    len(applicants) + skipped,
		Skipped: skipped,
		Labels:  make(map[domain.Eligibility]int),
	}
	seen := make(map[string]struct{})

	for i, applicant := range applicants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prediction, err := uc.predictor.Evaluate(ctx, applicant)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				out.Skipped++
				slog.Debug("batch_row_skipped", "dataset", dataset, "row", i, "field", verr.Field)
				continue
			}
			return nil, err
		}

		out.Scored++
		if prediction.Eligibility != nil {
			out.Labels[prediction.Eligibility.Label]++
		}
		if prediction.MaxEMI != nil {
			out.MaxEMI.Observe(prediction.MaxEMI.Amount)
		}
		for _, modelErr := range prediction.Errors {
			key := string(modelErr.Role) + "|" + modelErr.Kind + "|" + modelErr.Message
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out.Errors = append(out.Errors, modelErr)
		}
	}

	slog.Info("batch_scored",
		"dataset", dataset,
		"rows", out.Rows,
		"scored", out.Scored,
		"skipped", out.Skipped,
	)
	return out, nil
}
