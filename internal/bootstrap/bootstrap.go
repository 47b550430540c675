package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/emi-eligibility/internal/config"
	"github.com/kirillkom/emi-eligibility/internal/core/features"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
	"github.com/kirillkom/emi-eligibility/internal/core/usecase"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/artifacts"
	rediscache "github.com/kirillkom/emi-eligibility/internal/infrastructure/cache/redis"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/dataset"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/queue/nats"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/registry/mlflow"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/resilience"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/emi-eligibility/internal/observability/metrics"
)

type App struct {
	Config   config.Config
	Manifest artifacts.Manifest

	PredictUC *usecase.PredictUseCase
	InspectUC *usecase.ModelInspectUseCase
	BatchUC   *usecase.BatchScoreUseCase
	// SubmitUC and Queue are nil when NATS is not configured.
	SubmitUC  *usecase.SubmitApplicationUseCase
	ProcessUC *usecase.ProcessSubmissionUseCase
	Queue     ports.SubmissionQueue
	// Predictions is nil when Postgres is not configured.
	Predictions ports.PredictionReader

	closeFn []func()
}

// New wires the application. Schema, manifest and scaler problems are configuration errors and
// must stop the process; optional backends (Postgres, Redis, NATS) are skipped when unset.
func New(ctx context.Context, cfg config.Config, inference *metrics.InferenceMetrics) (*App, error) {
	pipeline, manifest, err := LoadPipeline(cfg)
	if err != nil {
		return nil, err
	}
	CheckCoverage(pipeline, cfg.CoverageWarnRatio)

	labels, err := manifest.LabelTable()
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Manifest: manifest}
	deps := usecase.PredictDeps{}
	var loadObserver usecase.ModelLoadObserver
	if inference != nil {
		deps.Observer = inference
		loadObserver = inference
	}

	mlflowExecutor := newExecutor(cfg, inference)
	client := mlflow.New(cfg.MLflowTrackingURI, mlflow.Options{
		Timeout:  cfg.MLflowTimeout,
		Executor: mlflowExecutor,
	})
	registry := mlflow.NewRegistry(client, manifest.Endpoints(), cfg.InferenceTimeout)
	models := usecase.NewModelCache(registry, loadObserver).WithLoadTimeout(cfg.ModelLoadTimeout)

	if cfg.PostgresDSN != "" {
		db, repo, err := openRepository(ctx, cfg.PostgresDSN)
		if err != nil {
			app.Close()
			return nil, err
		}
		deps.Store = repo
		app.Predictions = repo
		app.onClose(func() { _ = db.Close() })
	}

	if cfg.RedisAddr != "" {
		cache := rediscache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err := cache.Ping(ctx); err != nil {
			slog.Warn("prediction_cache_unreachable", "addr", cfg.RedisAddr, "error", err)
		}
		deps.Cache = cache
		app.onClose(func() { _ = cache.Close() })
	}

	var queue *nats.Queue
	if cfg.NATSURL != "" {
		queue, err = nats.New(cfg.NATSURL, cfg.NATSSubmitSubject, cfg.NATSResultSubject, nats.Options{
			ResilienceExecutor: newExecutor(cfg, inference),
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		deps.Events = queue
		app.Queue = queue
		app.onClose(queue.Close)
	}

	app.PredictUC = usecase.NewPredictUseCase(pipeline, models, usecase.PredictConfig{
		Classifier:        manifest.Classifier.Ref(),
		Regressor:         manifest.Regressor.Ref(),
		AnnualRate:        cfg.EMIAnnualRate,
		CoverageWarnRatio: cfg.CoverageWarnRatio,
		Labels:            labels,
	}, deps)
	app.InspectUC = usecase.NewModelInspectUseCase(registry, models, manifest.Classifier.Ref(), manifest.Regressor.Ref())
	app.ProcessUC = usecase.NewProcessSubmissionUseCase(app.PredictUC)
	if queue != nil {
		app.SubmitUC = usecase.NewSubmitApplicationUseCase(queue, pipeline)
	}

	storage, err := localfs.New(cfg.ArtifactDir)
	if err != nil {
		slog.Warn("batch_scoring_disabled", "artifact_dir", cfg.ArtifactDir, "error", err)
	} else {
		app.BatchUC = usecase.NewBatchScoreUseCase(dataset.NewReader(storage), app.PredictUC)
	}

	slog.Info("bootstrap_complete",
		"variant", manifest.Variant,
		"columns", pipeline.Schema.Len(),
		"classifier", manifest.Classifier.Ref().String(),
		"regressor", manifest.Regressor.Ref().String(),
		"audit_log", app.Predictions != nil,
		"prediction_cache", deps.Cache != nil,
		"queue", queue != nil,
	)
	return app, nil
}

// LoadPipeline reads the trained schema, serving manifest and optional scaler.
func LoadPipeline(cfg config.Config) (features.Pipeline, artifacts.Manifest, error) {
	schema, err := artifacts.LoadSchemaFile(cfg.SchemaPath)
	if err != nil {
		return features.Pipeline{}, artifacts.Manifest{}, fmt.Errorf("load trained schema: %w", err)
	}
	manifest, err := artifacts.LoadManifest(cfg.ManifestPath)
	if err != nil {
		return features.Pipeline{}, artifacts.Manifest{}, err
	}
	scaler, err := artifacts.LoadScaler(manifest.ScalerPath, schema)
	if err != nil {
		return features.Pipeline{}, artifacts.Manifest{}, err
	}
	return features.Pipeline{
		Schema:  schema,
		Variant: manifest.FeatureVariant(),
		Scaler:  scaler,
	}, manifest, nil
}

// CheckCoverage builds the reference applicant against the pipeline and reports how much of
// the trained schema the request fields can populate.
func CheckCoverage(pipeline features.Pipeline, warnRatio float64) float64 {
	applicant := features.ReferenceApplicant()
	vector, err := pipeline.Build(applicant)
	if err != nil {
		slog.Error("startup_coverage_check_failed", "error", err)
		return 0
	}
	coverage := features.Coverage(vector)
	missing := features.MissingColumns(pipeline.FeatureMap(applicant), pipeline.Schema)
	if coverage < warnRatio {
		slog.Warn("low_feature_coverage",
			"stage", "startup",
			"coverage", coverage,
			"variant", string(pipeline.Variant),
			"missing_columns", missing,
		)
		return coverage
	}
	if len(missing) > 0 {
		slog.Info("schema_columns_defaulted", "coverage", coverage, "missing_columns", missing)
	}
	return coverage
}

func openRepository(ctx context.Context, dsn string) (*sql.DB, *postgres.PredictionRepository, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewPredictionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, repo, nil
}

func newExecutor(cfg config.Config, inference *metrics.InferenceMetrics) *resilience.Executor {
	executor := resilience.NewExecutor(ResilienceConfig(cfg))
	if inference != nil {
		executor.WithStateObserver(inference.ObserveBreakerState)
	}
	return executor
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff: cfg.ResilienceRetryBaseBackoff,
		RetryMaxBackoff:     cfg.ResilienceRetryMaxBackoff,
		AttemptTimeout:      cfg.ResilienceAttemptTimeout,
		BreakerEnabled:      cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:  uint32(max(cfg.ResilienceBreakerMinReqs, 0)),
		BreakerFailureRatio: cfg.ResilienceBreakerRatio,
		BreakerOpenTimeout:  cfg.ResilienceBreakerTimeout,
	}
}

func (a *App) onClose(fn func()) {
	a.closeFn = append(a.closeFn, fn)
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFn) - 1; i >= 0; i-- {
		a.closeFn[i]()
	}
	a.closeFn = nil
}
