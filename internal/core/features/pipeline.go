package features

import (
	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// Pipeline turns a normalised applicant into the vector a trained model expects:
// raw fields and derived features, one-hot encoding against the schema, alignment, scaling.
type Pipeline struct {
	Schema  domain.TrainedSchema
	Variant Variant
	Scaler  *Scaler
}

// Vocabularies returns the categorical values the trained schema can encode.
func (p Pipeline) Vocabularies() domain.Vocabularies {
	return domain.VocabulariesFromSchema(p.Schema)
}

// Normalize canonicalises raw against the schema's vocabularies and checks the inputs the
// variant requires.
func (p Pipeline) Normalize(raw domain.Applicant) (domain.Applicant, error) {
	applicant, err := domain.NormalizeApplicantWith(raw, p.Vocabularies())
	if err != nil {
		return domain.Applicant{}, err
	}
	if err := RequireInputs(applicant, p.Variant); err != nil {
		return domain.Applicant{}, err
	}
	return applicant, nil
}

// FeatureMap returns every feature the pipeline can produce for a, before alignment.
func (p Pipeline) FeatureMap(a domain.Applicant) domain.FeatureMap {
	return Merge(
		RawFeatures(a),
		Derive(a, p.Variant),
		FromFlags(Encode(a, p.Schema.Names())),
	)
}

// Build produces the aligned, scaled vector for a.
func (p Pipeline) Build(a domain.Applicant) (domain.FeatureVector, error) {
	vector, err := Align(p.FeatureMap(a), p.Schema)
	if err != nil {
		return domain.FeatureVector{}, err
	}
	return p.Scaler.Apply(vector), nil
}

// ReferenceApplicant is a valid, typical applicant used for startup schema checks.
func ReferenceApplicant() domain.Applicant {
	maxEMI := 20000.0
	return domain.Applicant{
		Age:                30,
		MonthlySalary:      50000,
		YearsOfEmployment:  5,
		MonthlyRent:        10000,
		FamilySize:         3,
		Dependents:         1,
		ExistingLoans:      1,
		GroceriesUtilities: 8000,
		CurrentEMIAmount:   5000,
		CreditScore:        700,
		BankBalance:        100000,
		EmergencyFund:      50000,
		RequestedAmount:    250000,
		RequestedTenure:    24,
		MaxMonthlyEMI:      &maxEMI,
		Education:          "Post Graduate",
		EmploymentType:     "private",
		EMIScenario:        "Personal Loan Emi",
		CompanyType:        "MNC",
		HouseType:          "Rented",
		MaritalStatus:      "Single",
		Gender:             "Male",
	}
}
