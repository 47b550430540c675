package usecase

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
)

// DefaultModelLoadTimeout bounds a registry load that no caller can cancel.
const DefaultModelLoadTimeout = 30 * time.Second

// ModelLoadObserver is notified after every registry load attempt.
type ModelLoadObserver interface {
	ObserveModelLoad(ref domain.ModelRef, err error)
}

// ModelCache keeps loaded models for the life of the process, keyed by name and stage.
// Concurrent loads of the same ref are collapsed and failed loads are not cached. A load runs
// detached from the caller that started it, so a cancelled caller does not fail the others
// waiting on the same ref.
type ModelCache struct {
	registry    ports.ModelRegistry
	observer    ModelLoadObserver
	loadTimeout time.Duration

	mu     sync.RWMutex
	models map[domain.ModelRef]ports.Model
	group  singleflight.Group
}

func NewModelCache(registry ports.ModelRegistry, observer ModelLoadObserver) *ModelCache {
	return &ModelCache{
		registry:    registry,
		observer:    observer,
		loadTimeout: DefaultModelLoadTimeout,
		models:      make(map[domain.ModelRef]ports.Model),
	}
}

// WithLoadTimeout replaces the load timeout. Non-positive values keep the current one.
func (c *ModelCache) WithLoadTimeout(d time.Duration) *ModelCache {
	if d > 0 {
		c.loadTimeout = d
	}
	return c
}

func (c *ModelCache) Get(ctx context.Context, ref domain.ModelRef) (ports.Model, error) {
	if model, ok := c.cached(ref); ok {
		return model, nil
	}

	results := c.group.DoChan(ref.String(), func() (any, error) {
		if model, ok := c.cached(ref); ok {
			return model, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		model, err := c.registry.Load(loadCtx, ref)
		if c.observer != nil {
			c.observer.ObserveModelLoad(ref, err)
		}
		if err != nil {
			return nil, err
		}
		if !model.Concurrent() {
			model = &serializedModel{inner: model}
		}

		c.mu.Lock()
		c.models[ref] = model
		c.mu.Unlock()
		return model, nil
	})

	select {
	case <-ctx.Done():
		return nil, domain.WrapError(domain.ErrModelUnavailable, "load model "+ref.String(), ctx.Err())
	case res := <-results:
		if res.Err != nil {
			err := res.Err
			if !domain.IsKind(err, domain.ErrModelUnavailable) {
				err = domain.WrapError(domain.ErrModelUnavailable, "load model "+ref.String(), err)
			}
			return nil, err
		}
		return res.Val.(ports.Model), nil
	}
}

func (c *ModelCache) cached(ref domain.ModelRef) (ports.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	model, ok := c.models[ref]
	return model, ok
}

// Invalidate drops ref so the next Get reloads it from the registry.
func (c *ModelCache) Invalidate(ref domain.ModelRef) {
	c.mu.Lock()
	delete(c.models, ref)
	c.mu.Unlock()
}

// Purge drops every cached model and returns the refs that were held.
func (c *ModelCache) Purge() []domain.ModelRef {
	c.mu.Lock()
	defer c.mu.Unlock()

	refs := make([]domain.ModelRef, 0, len(c.models))
	for ref := range c.models {
		refs = append(refs, ref)
	}
	c.models = make(map[domain.ModelRef]ports.Model)
	return refs
}

// serializedModel guards artifacts whose inference runtime is not reentrant.
type serializedModel struct {
	mu    sync.Mutex
	inner ports.Model
}

func (m *serializedModel) Predict(ctx context.Context, vector domain.FeatureVector) (domain.RawPrediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inner.Predict(ctx, vector)
}

func (m *serializedModel) Version() domain.ModelVersion { return m.inner.Version() }

func (m *serializedModel) Concurrent() bool { return true }
