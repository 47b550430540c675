package domain

import (
	"fmt"
	"strings"
)

type CategoricalField string

const (
	FieldEducation      CategoricalField = "education"
	FieldEmploymentType CategoricalField = "employment_type"
	FieldEMIScenario    CategoricalField = "emi_scenario"
	FieldCompanyType    CategoricalField = "company_type"
	FieldHouseType      CategoricalField = "house_type"
	FieldMaritalStatus  CategoricalField = "marital_status"
	FieldGender         CategoricalField = "gender"
)

// CategoricalFields lists the one-hot encoded fields in training order.
var CategoricalFields = []CategoricalField{
	FieldEducation,
	FieldEmploymentType,
	FieldEMIScenario,
	FieldCompanyType,
	FieldHouseType,
	FieldMaritalStatus,
	FieldGender,
}

// Vocabularies holds the accepted values of each categorical field.
type Vocabularies map[CategoricalField][]string

// Built-in vocabularies. The first entry of each list is the drop-first base category of the
// training data and has no one-hot column of its own.
var vocabularies = Vocabularies{
	FieldEducation:      {"Graduate", "High School", "Post Graduate", "Professional"},
	FieldEmploymentType: {"Government", "private", "self-employed"},
	FieldEMIScenario:    {"E-commerce Shopping Emi", "Education Emi", "Home Appliances Emi", "Personal Loan Emi", "Vehicle Emi"},
	FieldCompanyType:    {"Large Indian", "MNC", "Mid-size", "Small", "Startup"},
	FieldHouseType:      {"Family", "Own", "Rented"},
	FieldMaritalStatus:  {"Married", "Single"},
	FieldGender:         {"Female", "Male"},
}

// Upstream sources spell gender several ways; all collapse to the canonical form here.
var genderAliases = map[string]string{
	"m":      "Male",
	"male":   "Male",
	"f":      "Female",
	"female": "Female",
}

// Vocabulary returns a copy of the canonical values accepted for field.
func Vocabulary(field CategoricalField) []string {
	values := vocabularies[field]
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// DefaultVocabularies returns a copy of the built-in vocabularies.
func DefaultVocabularies() Vocabularies {
	out := make(Vocabularies, len(vocabularies))
	for field := range vocabularies {
		out[field] = Vocabulary(field)
	}
	return out
}

// VocabulariesFromSchema derives the accepted values from the "{field}_{value}" columns of schema,
// spelled as the schema spells them. Columns that differ only by case collapse to one value, the
// built-in spelling when the schema has it. The built-in base category of each field is added
// when the schema has no column for it. Fields without any column keep the built-in list.
func VocabulariesFromSchema(schema TrainedSchema) Vocabularies {
	fromSchema := make(map[CategoricalField][]string)
	for _, name := range schema.Names() {
		field, value, ok := SplitCategoricalColumn(name)
		if !ok {
			continue
		}
		values := fromSchema[field]
		if i := indexFold(values, value); i >= 0 {
			if indexExact(vocabularies[field], value) >= 0 {
				values[i] = value
			}
			continue
		}
		fromSchema[field] = append(values, value)
	}

	out := make(Vocabularies, len(CategoricalFields))
	for _, field := range CategoricalFields {
		values, ok := fromSchema[field]
		if !ok {
			out[field] = Vocabulary(field)
			continue
		}
		base := vocabularies[field][0]
		if indexFold(values, base) < 0 {
			values = append([]string{base}, values...)
		}
		out[field] = values
	}
	return out
}

// Canonical maps raw onto the accepted spelling for field, matching case-insensitively.
// Gender aliases are resolved first. Unknown values are rejected.
func (v Vocabularies) Canonical(field CategoricalField, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", &ValidationError{Field: string(field), Reason: "is required"}
	}
	if field == FieldGender {
		if alias, ok := genderAliases[strings.ToLower(value)]; ok {
			value = alias
		}
	}
	for _, candidate := range v[field] {
		if strings.EqualFold(candidate, value) {
			return candidate, nil
		}
	}
	return "", &ValidationError{
		Field:  string(field),
		Reason: fmt.Sprintf("unknown value %q", value),
	}
}

// CanonicalValue maps a raw categorical value onto the built-in vocabulary.
func CanonicalValue(field CategoricalField, raw string) (string, error) {
	return vocabularies.Canonical(field, raw)
}

func indexFold(values []string, value string) int {
	for i, v := range values {
		if strings.EqualFold(v, value) {
			return i
		}
	}
	return -1
}

func indexExact(values []string, value string) int {
	for i, v := range values {
		if v == value {
			return i
		}
	}
	return -1
}

// SplitCategoricalColumn splits a one-hot column name "{field}_{value}" into its parts.
// The longest matching field prefix wins.
func SplitCategoricalColumn(column string) (CategoricalField, string, bool) {
	var (
		best  CategoricalField
		found bool
	)
	for _, field := range CategoricalFields {
		prefix := string(field) + "_"
		if strings.HasPrefix(column, prefix) && len(column) > len(prefix) {
			if !found || len(field) > len(best) {
				best = field
				found = true
			}
		}
	}
	if !found {
		return "", "", false
	}
	return best, strings.TrimPrefix(column, string(best)+"_"), true
}
