package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*PredictionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewPredictionRepository(db), mock, func() { _ = db.Close() }
}

var predictionColumns = []string{
	"id", "requested_at", "feature_variant", "applicant", "eligibility", "eligibility_raw", "classifier_version",
	"max_emi", "regressor_version", "tenure_emi", "annual_rate", "feature_coverage", "model_errors",
}

func TestSavePredictionWritesNullsForFailedModels(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	p := &domain.Prediction{
		ID:          "p-1",
		RequestedAt: time.Now().UTC(),
		Variant:     "standard",
		Eligibility: &domain.EligibilityResult{Label: domain.EligibilityHighRisk, Raw: "1", ModelVersion: "3"},
		TenureEMI:   11536.23,
		AnnualRate:  0.1,
		Coverage:    1,
		Errors:      []domain.ModelError{{Role: domain.RoleRegressor, Kind: "model_unavailable"}},
	}

	mock.ExpectExec("INSERT INTO predictions").
		WithArgs("p-1", sqlmock.AnyArg(), "standard", sqlmock.AnyArg(),
			"High_Risk", "1", "3", nil, nil, 11536.23, 0.1, 1.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SavePrediction(context.Background(), p); err != nil {
		t.Fatalf("SavePrediction() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetPredictionReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM predictions").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetPrediction(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetPredictionRestoresResults(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(predictionColumns).AddRow(
		"p-2", time.Now().UTC(), "standard", []byte(`{"age":30,"gender":"Male"}`),
		nil, nil, nil, 18250.46, "7", 11536.23, 0.1, 0.98,
		[]byte(`[{"role":"classifier","model":"clf","stage":"Production","kind":"inference","message":"boom"}]`),
	)
	mock.ExpectQuery("FROM predictions").WithArgs("p-2").WillReturnRows(rows)

	p, err := repo.GetPrediction(context.Background(), "p-2")
	if err != nil {
		t.Fatalf("GetPrediction() error = %v", err)
	}
	if p.Eligibility != nil {
		t.Fatalf("expected no eligibility result")
	}
	if p.MaxEMI == nil || p.MaxEMI.Amount != 18250.46 || p.MaxEMI.ModelVersion != "7" {
		t.Fatalf("unexpected max emi: %+v", p.MaxEMI)
	}
	if p.Applicant.Age != 30 || len(p.Errors) != 1 || p.Errors[0].Kind != "inference" {
		t.Fatalf("unexpected prediction: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS predictions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
