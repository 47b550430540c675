package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/features"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
)

var (
	classifierRef = domain.ModelRef{Name: "emi_eligibility_classifier", Stage: domain.StageProduction}
	regressorRef  = domain.ModelRef{Name: "max_emi_regressor", Stage: domain.StageProduction}
)

type modelFake struct {
	version    domain.ModelVersion
	out        domain.RawPrediction
	err        error
	concurrent bool
	calls      atomic.Int32
}

func (m *modelFake) Predict(context.Context, domain.FeatureVector) (domain.RawPrediction, error) {
	m.calls.Add(1)
	if m.err != nil {
		return domain.RawPrediction{}, m.err
	}
	return m.out, nil
}

func (m *modelFake) Version() domain.ModelVersion { return m.version }

func (m *modelFake) Concurrent() bool { return m.concurrent }

type registryFake struct {
	mu     sync.Mutex
	models map[domain.ModelRef]*modelFake
	errs   map[domain.ModelRef]error
	loads  map[domain.ModelRef]int
	delay  time.Duration
}

func newRegistryFake() *registryFake {
	return &registryFake{
		models: make(map[domain.ModelRef]*modelFake),
		errs:   make(map[domain.ModelRef]error),
		loads:  make(map[domain.ModelRef]int),
	}
}

func (r *registryFake) Resolve(_ context.Context, ref domain.ModelRef) (domain.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[ref]; err != nil {
		return domain.ModelVersion{}, err
	}
	m, ok := r.models[ref]
	if !ok {
		return domain.ModelVersion{}, domain.WrapError(domain.ErrModelUnavailable, "resolve", errors.New("no version at stage"))
	}
	return m.version, nil
}

func (r *registryFake) Load(ctx context.Context, ref domain.ModelRef) (ports.Model, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	r.loads[ref]++
	r.mu.Unlock()
	if _, err := r.Resolve(ctx, ref); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.models[ref], nil
}

func (r *registryFake) loadCount(ref domain.ModelRef) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads[ref]
}

type storeFake struct {
	saved []*domain.Prediction
	err   error
}

func (s *storeFake) SavePrediction(_ context.Context, p *domain.Prediction) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, p)
	return nil
}

type publisherFake struct {
	published []string
	err       error
}

func (p *publisherFake) PublishPrediction(_ context.Context, prediction *domain.Prediction) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, prediction.ID)
	return nil
}

type cacheFake struct {
	entries map[string]domain.RawPrediction
	sets    int
}

func (c *cacheFake) key(version domain.ModelVersion) string {
	return version.Name + "@" + version.Version
}

func (c *cacheFake) Get(_ context.Context, version domain.ModelVersion, _ domain.FeatureVector) (domain.RawPrediction, bool, error) {
	p, ok := c.entries[c.key(version)]
	return p, ok, nil
}

func (c *cacheFake) Set(_ context.Context, version domain.ModelVersion, _ domain.FeatureVector, p domain.RawPrediction) error {
	if c.entries == nil {
		c.entries = make(map[string]domain.RawPrediction)
	}
	c.entries[c.key(version)] = p
	c.sets++
	return nil
}

type observerFake struct {
	mu        sync.Mutex
	coverage  []float64
	inference map[string]int
	loads     int
}

func (o *observerFake) ObserveInference(role domain.ModelRole, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inference == nil {
		o.inference = make(map[string]int)
	}
	o.inference[string(role)+":"+status]++
}

func (o *observerFake) ObserveCoverage(ratio float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.coverage = append(o.coverage, ratio)
}

func (o *observerFake) ObserveModelLoad(domain.ModelRef, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loads++
}

func testSchema() domain.TrainedSchema {
	names := []string{
		"age", "monthly_salary", "credit_score", "requested_amount", "requested_tenure",
		"debt_to_income_ratio", "expense_to_income_ratio", "emi_gap",
		"gender_Male", "house_type_Rented", "education_Post Graduate",
	}
	schema := domain.TrainedSchema{}
	for _, name := range names {
		schema.Columns = append(schema.Columns, domain.SchemaColumn{Name: name, Kind: domain.InferColumnKind(name)})
	}
	return schema
}

func healthyRegistry() *registryFake {
	reg := newRegistryFake()
	reg.models[classifierRef] = &modelFake{
		version:    domain.ModelVersion{Name: classifierRef.Name, Version: "3", Stage: domain.StageProduction},
		out:        domain.RawPrediction{Value: float64(0)},
		concurrent: true,
	}
	reg.models[regressorRef] = &modelFake{
		version:    domain.ModelVersion{Name: regressorRef.Name, Version: "7", Stage: domain.StageProduction},
		out:        domain.RawPrediction{Value: 18250.456},
		concurrent: true,
	}
	return reg
}

func testPipeline() features.Pipeline {
	return features.Pipeline{Schema: testSchema(), Variant: features.VariantStandard}
}

func newTestPredictor(reg *registryFake, deps PredictDeps) *PredictUseCase {
	pipeline := testPipeline()
	cfg := PredictConfig{
		Classifier:        classifierRef,
		Regressor:         regressorRef,
		AnnualRate:        features.DefaultAnnualRate,
		CoverageWarnRatio: 0.6,
	}
	return NewPredictUseCase(pipeline, NewModelCache(reg, nil), cfg, deps)
}
