package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// PredictionRepository keeps an audit trail of served predictions.
type PredictionRepository struct {
	db *sql.DB
}

func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	requested_at TIMESTAMPTZ NOT NULL,
	feature_variant TEXT NOT NULL,
	applicant JSONB NOT NULL,
	eligibility TEXT,
	eligibility_raw TEXT,
	classifier_version TEXT,
	max_emi DOUBLE PRECISION,
	regressor_version TEXT,
	tenure_emi DOUBLE PRECISION NOT NULL,
	annual_rate DOUBLE PRECISION NOT NULL,
	feature_coverage DOUBLE PRECISION NOT NULL,
	model_errors JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_predictions_requested_at ON predictions(requested_at DESC);
CREATE INDEX IF NOT EXISTS idx_predictions_eligibility ON predictions(eligibility);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *PredictionRepository) SavePrediction(ctx context.Context, p *domain.Prediction) error {
	applicantJSON, err := json.Marshal(p.Applicant)
	if err != nil {
		return fmt.Errorf("marshal applicant: %w", err)
	}
	errs := p.Errors
	if errs == nil {
		errs = []domain.ModelError{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("marshal model errors: %w", err)
	}

	var (
		label, raw, classifierVersion sql.NullString
		maxEMI                        sql.NullFloat64
		regressorVersion              sql.NullString
	)
	if p.Eligibility != nil {
		label = sql.NullString{String: string(p.Eligibility.Label), Valid: true}
		raw = sql.NullString{String: p.Eligibility.Raw, Valid: true}
		classifierVersion = sql.NullString{String: p.Eligibility.ModelVersion, Valid: true}
	}
	if p.MaxEMI != nil {
		maxEMI = sql.NullFloat64{Float64: p.MaxEMI.Amount, Valid: true}
		regressorVersion = sql.NullString{String: p.MaxEMI.ModelVersion, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO predictions (
	id, requested_at, feature_variant, applicant, eligibility, eligibility_raw, classifier_version,
	max_emi, regressor_version, tenure_emi, annual_rate, feature_coverage, model_errors
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		p.ID, p.RequestedAt, p.Variant, applicantJSON, label, raw, classifierVersion,
		maxEMI, regressorVersion, p.TenureEMI, p.AnnualRate, p.Coverage, errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (r *PredictionRepository) GetPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, requested_at, feature_variant, applicant, eligibility, eligibility_raw, classifier_version,
	max_emi, regressor_version, tenure_emi, annual_rate, feature_coverage, model_errors
FROM predictions
WHERE id = $1
`, id)

	var (
		p                             domain.Prediction
		applicantRaw, errorsRaw       []byte
		label, raw, classifierVersion sql.NullString
		maxEMI                        sql.NullFloat64
		regressorVersion              sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.RequestedAt, &p.Variant, &applicantRaw, &label, &raw, &classifierVersion,
		&maxEMI, &regressorVersion, &p.TenureEMI, &p.AnnualRate, &p.Coverage, &errorsRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get prediction", fmt.Errorf("prediction %s", id))
		}
		return nil, fmt.Errorf("scan prediction: %w", err)
	}

	if err := json.Unmarshal(applicantRaw, &p.Applicant); err != nil {
		return nil, fmt.Errorf("unmarshal applicant: %w", err)
	}
	if err := json.Unmarshal(errorsRaw, &p.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal model errors: %w", err)
	}
	if len(p.Errors) == 0 {
		p.Errors = nil
	}
	if label.Valid {
		l := domain.Eligibility(label.String)
		p.Eligibility = &domain.EligibilityResult{
			Label:        l,
			Display:      l.Display(),
			Raw:          raw.String,
			ModelVersion: classifierVersion.String,
		}
	}
	if maxEMI.Valid {
		p.MaxEMI = &domain.MaxEMIResult{Amount: maxEMI.Float64, ModelVersion: regressorVersion.String}
	}
	return &p, nil
}
