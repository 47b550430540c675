package features

import (
	"errors"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// Align reindexes fm onto the trained schema. The output has exactly the schema's columns in the
// schema's order; absent columns are filled with the zero value of their kind and inputs unknown
// to the schema are dropped.
func Align(fm domain.FeatureMap, schema domain.TrainedSchema) (domain.FeatureVector, error) {
	if schema.Len() == 0 {
		return domain.FeatureVector{}, domain.WrapError(
			domain.ErrConfiguration,
			"align features",
			errors.New("trained schema has no columns"),
		)
	}

	vector := domain.FeatureVector{
		Columns: make([]string, schema.Len()),
		Values:  make([]domain.FeatureValue, schema.Len()),
	}
	for i, column := range schema.Columns {
		kind := column.Kind
		if kind == "" {
			kind = domain.InferColumnKind(column.Name)
		}
		vector.Columns[i] = column.Name

		value, ok := fm[column.Name]
		if !ok {
			vector.Values[i] = domain.Zero(kind)
			continue
		}
		vector.Values[i] = value.As(kind)
		vector.Populated++
	}
	return vector, nil
}

// Coverage is the fraction of schema columns that were populated from real inputs.
func Coverage(v domain.FeatureVector) float64 {
	if v.Len() == 0 {
		return 0
	}
	return float64(v.Populated) / float64(v.Len())
}

// MissingColumns lists schema columns that fm does not provide, in schema order.
func MissingColumns(fm domain.FeatureMap, schema domain.TrainedSchema) []string {
	var missing []string
	for _, column := range schema.Columns {
		if _, ok := fm[column.Name]; !ok {
			missing = append(missing, column.Name)
		}
	}
	return missing
}

// Merge combines feature maps; later maps win on name collisions.
func Merge(maps ...domain.FeatureMap) domain.FeatureMap {
	size := 0
	for _, m := range maps {
		size += len(m)
	}
	out := make(domain.FeatureMap, size)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// FromFlags lifts encoder output into a feature map.
func FromFlags(flags map[string]bool) domain.FeatureMap {
	out := make(domain.FeatureMap, len(flags))
	for k, v := range flags {
		out[k] = domain.Flag(v)
	}
	return out
}
