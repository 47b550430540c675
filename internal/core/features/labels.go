package features

import (
	"maps"
	"slices"
	"strings"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// LabelTable decodes raw classifier outputs back to the eligibility vocabulary.
type LabelTable map[string]domain.Eligibility

// DefaultLabelTable covers both label-encoded (0/1/2) and string-emitting classifiers.
func DefaultLabelTable() LabelTable {
	return LabelTable{
		"0":            domain.EligibilityEligible,
		"1":            domain.EligibilityHighRisk,
		"2":            domain.EligibilityNotEligible,
		"Eligible":     domain.EligibilityEligible,
		"High_Risk":    domain.EligibilityHighRisk,
		"Not_Eligible": domain.EligibilityNotEligible,
	}
}

// Decode maps p to an eligibility label. An exact key wins; otherwise keys are compared
// case-insensitively in sorted order. Outputs missing from the table decode to their string
// form and report ok=false.
func (t LabelTable) Decode(p domain.RawPrediction) (domain.Eligibility, bool) {
	key := p.Key()
	if label, ok := t[key]; ok {
		return label, true
	}
	for _, k := range slices.Sorted(maps.Keys(t)) {
		if strings.EqualFold(k, key) {
			return t[k], true
		}
	}
	return domain.Eligibility(key), false
}

// CaseConflict reports two keys that differ only by case but decode to different labels.
func (t LabelTable) CaseConflict() (string, string, bool) {
	seen := make(map[string]string, len(t))
	for _, k := range slices.Sorted(maps.Keys(t)) {
		folded := strings.ToLower(k)
		if prev, ok := seen[folded]; ok && t[prev] != t[k] {
			return prev, k, true
		}
		seen[folded] = k
	}
	return "", "", false
}
