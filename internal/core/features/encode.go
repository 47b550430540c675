package features

import "github.com/kirillkom/emi-eligibility/internal/core/domain"

// Encode one-hot encodes a's categorical fields against knownColumns. A column is true only when
// the applicant's canonical value equals the column suffix; every other known categorical column,
// including the drop-first base category, is false. Non-categorical columns are ignored.
func Encode(a domain.Applicant, knownColumns []string) map[string]bool {
	out := make(map[string]bool, len(knownColumns))
	for _, column := range knownColumns {
		if _, seen := out[column]; seen {
			continue
		}
		field, value, ok := domain.SplitCategoricalColumn(column)
		if !ok {
			continue
		}
		out[column] = a.Categorical(field) == value
	}
	return out
}
