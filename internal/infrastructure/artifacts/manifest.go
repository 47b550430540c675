package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/features"
)

// ModelSpec names a registered model and the scoring endpoint serving it.
type ModelSpec struct {
	Name       string `yaml:"name"`
	Stage      string `yaml:"stage"`
	ServingURL string `yaml:"serving_url"`
}

func (m ModelSpec) Ref() domain.ModelRef {
	return domain.ModelRef{Name: m.Name, Stage: m.Stage}
}

// Manifest describes what a deployment serves and how its features were built.
type Manifest struct {
	Variant    string            `yaml:"feature_variant"`
	Classifier ModelSpec         `yaml:"classifier"`
	Regressor  ModelSpec         `yaml:"regressor"`
	ScalerPath string            `yaml:"scaler"`
	Labels     map[string]string `yaml:"labels"`
}

// DefaultManifest matches the original deployment: standard features, no scaler, both models
// from the Production stage.
func DefaultManifest() Manifest {
	return Manifest{
		Variant:    string(features.VariantStandard),
		Classifier: ModelSpec{Name: "emi_eligibility_classifier", Stage: domain.StageProduction},
		Regressor:  ModelSpec{Name: "max_emi_regressor", Stage: domain.StageProduction},
	}
}

// LoadManifest reads the YAML manifest at path over DefaultManifest. An empty path returns
// the defaults. Relative scaler paths are resolved against the manifest's directory.
func LoadManifest(path string) (Manifest, error) {
	m := DefaultManifest()
	if strings.TrimSpace(path) == "" {
		return m, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, domain.WrapError(domain.ErrConfiguration, "load serving manifest", err)
	}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, domain.WrapError(domain.ErrConfiguration, "parse serving manifest", err)
	}
	if m.ScalerPath != "" && !filepath.IsAbs(m.ScalerPath) {
		m.ScalerPath = filepath.Join(filepath.Dir(path), m.ScalerPath)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (m Manifest) Validate() error {
	if _, err := features.ParseVariant(m.Variant); err != nil {
		return err
	}
	for role, spec := range map[domain.ModelRole]ModelSpec{
		domain.RoleClassifier: m.Classifier,
		domain.RoleRegressor:  m.Regressor,
	} {
		if strings.TrimSpace(spec.Name) == "" || strings.TrimSpace(spec.Stage) == "" {
			return domain.WrapError(domain.ErrConfiguration, "validate serving manifest",
				fmt.Errorf("%s needs a model name and stage", role))
		}
	}
	if _, err := m.LabelTable(); err != nil {
		return err
	}
	return nil
}

// FeatureVariant returns the parsed feature variant.
func (m Manifest) FeatureVariant() features.Variant {
	v, _ := features.ParseVariant(m.Variant)
	return v
}

// LabelTable returns the default label table extended by the manifest's labels.
func (m Manifest) LabelTable() (features.LabelTable, error) {
	table := features.DefaultLabelTable()
	for raw, label := range m.Labels {
		canonical, ok := features.DefaultLabelTable()[label]
		if !ok {
			return nil, domain.WrapError(domain.ErrConfiguration, "validate serving manifest",
				fmt.Errorf("label %q maps to unknown eligibility %q", raw, label))
		}
		table[raw] = canonical
	}
	if a, b, clash := table.CaseConflict(); clash {
		return nil, domain.WrapError(domain.ErrConfiguration, "validate serving manifest",
			fmt.Errorf("labels %q and %q differ only by case but map to %q and %q", a, b, table[a], table[b]))
	}
	return table, nil
}

// Endpoints returns model name to serving URL for every model with an endpoint.
func (m Manifest) Endpoints() map[string]string {
	out := make(map[string]string, 2)
	for _, spec := range []ModelSpec{m.Classifier, m.Regressor} {
		if spec.ServingURL != "" {
			out[spec.Name] = spec.ServingURL
		}
	}
	return out
}
