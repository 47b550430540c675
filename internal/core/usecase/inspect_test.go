package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

func TestDescribeReportsPerModelErrors(t *testing.T) {
	reg := healthyRegistry()
	reg.models[classifierRef].version.Metrics = map[string]float64{"accuracy": 0.91}
	delete(reg.models, regressorRef)
	uc := NewModelInspectUseCase(reg, NewModelCache(reg, nil), classifierRef, regressorRef)

	got := uc.Describe(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected two descriptions, got %d", len(got))
	}
	if got[0].Role != domain.RoleClassifier || got[0].Version == nil || got[0].Version.Metrics["accuracy"] != 0.91 {
		t.Fatalf("unexpected classifier description: %+v", got[0])
	}
	if got[1].Version != nil || got[1].Error == nil || got[1].Error.Kind != "model_unavailable" {
		t.Fatalf("unexpected regressor description: %+v", got[1])
	}
}

func TestReloadPurgesModelCache(t *testing.T) {
	reg := healthyRegistry()
	cache := NewModelCache(reg, nil)
	if _, err := cache.Get(context.Background(), classifierRef); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	uc := NewModelInspectUseCase(reg, cache, classifierRef, regressorRef)

	refs := uc.Reload()
	if len(refs) != 1 || refs[0] != classifierRef {
		t.Fatalf("unexpected purged refs: %v", refs)
	}
}
