package features

import "github.com/kirillkom/emi-eligibility/internal/core/domain"

// ScaleParams are the fitted mean and scale of one numeric column.
type ScaleParams struct {
	Mean  float64 `yaml:"mean" json:"mean"`
	Scale float64 `yaml:"scale" json:"scale"`
}

// Scaler standardises numeric columns with parameters fitted at training time.
type Scaler struct {
	Columns map[string]ScaleParams
}

func (s *Scaler) Empty() bool {
	return s == nil || len(s.Columns) == 0
}

// Apply returns a copy of v with every fitted numeric column standardised. Boolean columns and
// columns without parameters pass through untouched.
func (s *Scaler) Apply(v domain.FeatureVector) domain.FeatureVector {
	if s.Empty() {
		return v
	}
	out := domain.FeatureVector{
		Columns:   v.Columns,
		Values:    make([]domain.FeatureValue, len(v.Values)),
		Populated: v.Populated,
	}
	copy(out.Values, v.Values)
	for i, column := range v.Columns {
		params, ok := s.Columns[column]
		if !ok || out.Values[i].Kind == domain.KindBoolean {
			continue
		}
		scale := params.Scale
		if scale == 0 {
			scale = 1
		}
		out.Values[i] = domain.Number((out.Values[i].Float() - params.Mean) / scale)
	}
	return out
}
