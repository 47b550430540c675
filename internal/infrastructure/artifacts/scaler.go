package artifacts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/features"
)

type scalerFile struct {
	Columns map[string]features.ScaleParams `yaml:"columns"`
}

// LoadScaler reads fitted scaling parameters. An empty path means no scaling.
func LoadScaler(path string, schema domain.TrainedSchema) (*features.Scaler, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load scaler", err)
	}
	var file scalerFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse scaler", err)
	}

	known := make(map[string]domain.FeatureKind, schema.Len())
	for _, c := range schema.Columns {
		known[c.Name] = c.Kind
	}
	for column, params := range file.Columns {
		kind, ok := known[column]
		if !ok {
			return nil, domain.WrapError(domain.ErrConfiguration, "validate scaler",
				fmt.Errorf("column %q is not in the trained schema", column))
		}
		if kind == domain.KindBoolean {
			return nil, domain.WrapError(domain.ErrConfiguration, "validate scaler",
				fmt.Errorf("column %q is boolean and cannot be scaled", column))
		}
		if params.Scale < 0 {
			return nil, domain.WrapError(domain.ErrConfiguration, "validate scaler",
				fmt.Errorf("column %q has negative scale", column))
		}
	}
	return &features.Scaler{Columns: file.Columns}, nil
}
