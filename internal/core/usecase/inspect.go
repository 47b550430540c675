package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
)

type ModelInspectUseCase struct {
	registry   ports.ModelRegistry
	models     *ModelCache
	classifier domain.ModelRef
	regressor  domain.ModelRef
}

func NewModelInspectUseCase(
	registry ports.ModelRegistry,
	models *ModelCache,
	classifier, regressor domain.ModelRef,
) *ModelInspectUseCase {
	return &ModelInspectUseCase{
		registry:   registry,
		models:     models,
		classifier: classifier,
		regressor:  regressor,
	}
}

// Describe resolves every configured model against the registry. A failing lookup is reported
// on its own entry and never hides the other model.
func (uc *ModelInspectUseCase) Describe(ctx context.Context) []domain.ModelDescription {
	out := make([]domain.ModelDescription, 0, 2)
	for _, m := range []struct {
		role domain.ModelRole
		ref  domain.ModelRef
	}{
		{domain.RoleClassifier, uc.classifier},
		{domain.RoleRegressor, uc.regressor},
	} {
		desc := domain.ModelDescription{Role: m.role, Ref: m.ref}
		version, err := uc.registry.Resolve(ctx, m.ref)
		if err != nil {
			modelErr := newModelError(m.role, m.ref, err)
			desc.Error = &modelErr
		} else {
			desc.Version = &version
		}
		out = append(out, desc)
	}
	return out
}

// Reload drops every cached model so the next prediction picks up newly promoted versions.
func (uc *ModelInspectUseCase) Reload() []domain.ModelRef {
	refs := uc.models.Purge()
	slog.Info("models_reloaded", "purged", len(refs))
	return refs
}
