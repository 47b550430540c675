package domain

import (
	"fmt"
	"math"
	"strings"
)

// Applicant is the raw record collected from a single prediction request.
type Applicant struct {
	Age                  int      `json:"age"`
	MonthlySalary        float64  `json:"monthly_salary"`
	YearsOfEmployment    float64  `json:"years_of_employment"`
	MonthlyRent          float64  `json:"monthly_rent"`
	FamilySize           int      `json:"family_size"`
	Dependents           int      `json:"dependents"`
	ExistingLoans        int      `json:"existing_loans"`
	SchoolFees           float64  `json:"school_fees"`
	CollegeFees          float64  `json:"college_fees"`
	TravelExpenses       float64  `json:"travel_expenses"`
	GroceriesUtilities   float64  `json:"groceries_utilities"`
	OtherMonthlyExpenses float64  `json:"other_monthly_expenses"`
	CurrentEMIAmount     float64  `json:"current_emi_amount"`
	CreditScore          float64  `json:"credit_score"`
	BankBalance          float64  `json:"bank_balance"`
	EmergencyFund        float64  `json:"emergency_fund"`
	RequestedAmount      float64  `json:"requested_amount"`
	RequestedTenure      int      `json:"requested_tenure"`
	MaxMonthlyEMI        *float64 `json:"max_monthly_emi,omitempty"`

	Education      string `json:"education"`
	EmploymentType string `json:"employment_type"`
	EMIScenario    string `json:"emi_scenario"`
	CompanyType    string `json:"company_type"`
	HouseType      string `json:"house_type"`
	MaritalStatus  string `json:"marital_status"`
	Gender         string `json:"gender"`
}

// Categorical returns the applicant's value for a categorical field.
func (a Applicant) Categorical(field CategoricalField) string {
	switch field {
	case FieldEducation:
		return a.Education
	case FieldEmploymentType:
		return a.EmploymentType
	case FieldEMIScenario:
		return a.EMIScenario
	case FieldCompanyType:
		return a.CompanyType
	case FieldHouseType:
		return a.HouseType
	case FieldMaritalStatus:
		return a.MaritalStatus
	case FieldGender:
		return a.Gender
	default:
		return ""
	}
}

func (a *Applicant) setCategorical(field CategoricalField, value string) {
	switch field {
	case FieldEducation:
		a.Education = value
	case FieldEmploymentType:
		a.EmploymentType = value
	case FieldEMIScenario:
		a.EMIScenario = value
	case FieldCompanyType:
		a.CompanyType = value
	case FieldHouseType:
		a.HouseType = value
	case FieldMaritalStatus:
		a.MaritalStatus = value
	case FieldGender:
		a.Gender = value
	}
}

// MaxMonthlyEMIOrZero treats an absent max_monthly_emi as zero.
func (a Applicant) MaxMonthlyEMIOrZero() float64 {
	if a.MaxMonthlyEMI == nil {
		return 0
	}
	return *a.MaxMonthlyEMI
}

// NormalizeApplicant is NormalizeApplicantWith against the built-in vocabularies.
func NormalizeApplicant(a Applicant) (Applicant, error) {
	return NormalizeApplicantWith(a, vocabularies)
}

// NormalizeApplicantWith rewrites every categorical field to its spelling in vocab and validates
// the record. The returned copy is the only form the feature pipeline accepts.
func NormalizeApplicantWith(a Applicant, vocab Vocabularies) (Applicant, error) {
	out := a
	for _, field := range CategoricalFields {
		canonical, err := vocab.Canonical(field, a.Categorical(field))
		if err != nil {
			return Applicant{}, err
		}
		out.setCategorical(field, canonical)
	}
	if err := out.Validate(); err != nil {
		return Applicant{}, err
	}
	return out, nil
}

type numericRange struct {
	field string
	value float64
	min   float64
	max   float64
}

// Validate checks numeric fields against the ranges accepted by the input form.
// Out-of-range values are rejected, never clamped.
func (a Applicant) Validate() error {
	checks := []numericRange{
		{"age", float64(a.Age), 18, 75},
		{"monthly_salary", a.MonthlySalary, 0, 500000},
		{"years_of_employment", a.YearsOfEmployment, 0, 50},
		{"monthly_rent", a.MonthlyRent, 0, 100000},
		{"family_size", float64(a.FamilySize), 1, 5},
		{"dependents", float64(a.Dependents), 0, 4},
		{"existing_loans", float64(a.ExistingLoans), 0, math.MaxInt32},
		{"school_fees", a.SchoolFees, 0, 100000},
		{"college_fees", a.CollegeFees, 0, 100000},
		{"travel_expenses", a.TravelExpenses, 0, 100000},
		{"groceries_utilities", a.GroceriesUtilities, 0, 100000},
		{"other_monthly_expenses", a.OtherMonthlyExpenses, 0, 100000},
		{"current_emi_amount", a.CurrentEMIAmount, 0, 100000},
		{"credit_score", a.CreditScore, 300, 900},
		{"bank_balance", a.BankBalance, 0, 1000000},
		{"emergency_fund", a.EmergencyFund, 0, 1000000},
		{"requested_amount", a.RequestedAmount, 10000, 1000000},
		{"requested_tenure", float64(a.RequestedTenure), 6, 60},
	}
	if a.MaxMonthlyEMI != nil {
		checks = append(checks, numericRange{"max_monthly_emi", *a.MaxMonthlyEMI, 0, 100000})
	}

	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return &ValidationError{Field: c.field, Reason: "must be a finite number"}
		}
		if c.value < c.min || c.value > c.max {
			return &ValidationError{
				Field:  c.field,
				Reason: fmt.Sprintf("must be between %s and %s, got %s", formatBound(c.min), formatBound(c.max), formatBound(c.value)),
			}
		}
	}

	for _, field := range CategoricalFields {
		if strings.TrimSpace(a.Categorical(field)) == "" {
			return &ValidationError{Field: string(field), Reason: "is required"}
		}
	}
	return nil
}

func formatBound(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}
