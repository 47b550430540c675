package features

import (
	"fmt"
	"strings"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

// Variant selects which derived-feature formula set a deployment was trained with.
type Variant string

const (
	// VariantStandard collects max_monthly_emi and uses multiplicative interaction terms.
	VariantStandard Variant = "standard"
	// VariantExtended adds rent to expenses, uses threshold flags and missing-value indicators.
	VariantExtended Variant = "extended"
)

func ParseVariant(raw string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case "", VariantStandard:
		return VariantStandard, nil
	case VariantExtended:
		return VariantExtended, nil
	default:
		return "", domain.WrapError(domain.ErrConfiguration, "parse feature variant", fmt.Errorf("unknown variant %q", raw))
	}
}

// RequireInputs rejects applicants missing an input the variant's formulas depend on.
// The standard variant was trained with max_monthly_emi always present.
func RequireInputs(a domain.Applicant, v Variant) error {
	if v == VariantStandard && a.MaxMonthlyEMI == nil {
		return &domain.ValidationError{Field: "max_monthly_emi", Reason: "is required for the standard feature variant"}
	}
	return nil
}

// DerivedNames returns the fixed derived feature names for a variant.
func DerivedNames(v Variant) []string {
	names := []string{
		"total_expenses",
		"debt_to_income_ratio",
		"expense_to_income_ratio",
		"emi_gap",
		"credit_risk_score",
		"employment_stability",
		"salary_credit_interaction",
		"balance_emi_gap",
	}
	if v == VariantExtended {
		names = append(names,
			"savings_potential",
			"affordability_ratio",
			"salary_missing",
			"balance_missing",
			"fund_missing",
		)
	}
	return names
}

// safeDenominator substitutes 1 for a zero denominator.
func safeDenominator(x float64) float64 {
	if x == 0 {
		return 1
	}
	return x
}

func indicator(cond bool) float64 {
	if cond {
		return 1
	}
	return 0
}

// Derive computes the secondary financial features of a. It is pure: the same applicant and
// variant always yield the same map.
func Derive(a domain.Applicant, v Variant) domain.FeatureMap {
	salary := safeDenominator(a.MonthlySalary)
	totalExpenses := a.SchoolFees + a.CollegeFees + a.TravelExpenses + a.GroceriesUtilities + a.OtherMonthlyExpenses

	if v == VariantExtended {
		totalExpenses += a.MonthlyRent
		emiGap := 0 - a.CurrentEMIAmount
		return domain.FeatureMap{
			"total_expenses":            domain.Number(totalExpenses),
			"debt_to_income_ratio":      domain.Number(a.CurrentEMIAmount / salary),
			"expense_to_income_ratio":   domain.Number(totalExpenses / salary),
			"emi_gap":                   domain.Number(emiGap),
			"credit_risk_score":         domain.Number(indicator(a.CreditScore < 600)),
			"employment_stability":      domain.Number(indicator(a.YearsOfEmployment >= 5)),
			"salary_credit_interaction": domain.Number(a.MonthlySalary * a.CreditScore),
			"balance_emi_gap":           domain.Number(a.BankBalance - a.CurrentEMIAmount),
			"savings_potential":         domain.Number(a.BankBalance + a.EmergencyFund - a.CurrentEMIAmount),
			"affordability_ratio":       domain.Number((a.BankBalance + a.EmergencyFund) / safeDenominator(a.RequestedAmount)),
			"salary_missing":            domain.Number(indicator(a.MonthlySalary == 0)),
			"balance_missing":           domain.Number(indicator(a.BankBalance == 0)),
			"fund_missing":              domain.Number(indicator(a.EmergencyFund == 0)),
		}
	}

	emiGap := a.MaxMonthlyEMIOrZero() - a.CurrentEMIAmount
	return domain.FeatureMap{
		"total_expenses":            domain.Number(totalExpenses),
		"debt_to_income_ratio":      domain.Number(a.CurrentEMIAmount / salary),
		"expense_to_income_ratio":   domain.Number(totalExpenses / salary),
		"emi_gap":                   domain.Number(emiGap),
		"credit_risk_score":         domain.Number(850 - a.CreditScore),
		"employment_stability":      domain.Number(a.YearsOfEmployment * float64(a.ExistingLoans)),
		"salary_credit_interaction": domain.Number(a.MonthlySalary * a.CreditScore),
		"balance_emi_gap":           domain.Number(a.BankBalance * emiGap),
	}
}

// RawFeatures returns the applicant's numeric input fields as features.
func RawFeatures(a domain.Applicant) domain.FeatureMap {
	out := domain.FeatureMap{
		"age":                    domain.Number(float64(a.Age)),
		"monthly_salary":         domain.Number(a.MonthlySalary),
		"years_of_employment":    domain.Number(a.YearsOfEmployment),
		"monthly_rent":           domain.Number(a.MonthlyRent),
		"family_size":            domain.Integer(int64(a.FamilySize)),
		"dependents":             domain.Integer(int64(a.Dependents)),
		"school_fees":            domain.Number(a.SchoolFees),
		"college_fees":           domain.Number(a.CollegeFees),
		"travel_expenses":        domain.Number(a.TravelExpenses),
		"groceries_utilities":    domain.Number(a.GroceriesUtilities),
		"other_monthly_expenses": domain.Number(a.OtherMonthlyExpenses),
		"existing_loans":         domain.Integer(int64(a.ExistingLoans)),
		"current_emi_amount":     domain.Number(a.CurrentEMIAmount),
		"credit_score":           domain.Number(a.CreditScore),
		"bank_balance":           domain.Number(a.BankBalance),
		"emergency_fund":         domain.Number(a.EmergencyFund),
		"requested_amount":       domain.Number(a.RequestedAmount),
		"requested_tenure":       domain.Integer(int64(a.RequestedTenure)),
	}
	if a.MaxMonthlyEMI != nil {
		out["max_monthly_emi"] = domain.Number(*a.MaxMonthlyEMI)
	}
	return out
}
