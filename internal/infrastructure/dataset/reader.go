package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/tabular"
)

// Reader parses applicant rows from CSV or XLSX files held in object storage. The first row
// is a header naming applicant fields; unknown columns such as training targets are ignored.
type Reader struct {
	storage ports.ObjectStorage
}

func NewReader(storage ports.ObjectStorage) *Reader {
	return &Reader{storage: storage}
}

type fieldSetter func(a *domain.Applicant, raw string) error

func floatField(dst func(*domain.Applicant) *float64) fieldSetter {
	return func(a *domain.Applicant, raw string) error {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*dst(a) = v
		return nil
	}
}

// intField accepts "3" and "3.0", which spreadsheet exports produce for integer columns.
func intField(dst func(*domain.Applicant) *int) fieldSetter {
	return func(a *domain.Applicant, raw string) error {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		if v != float64(int64(v)) {
			return fmt.Errorf("%s is not a whole number", raw)
		}
		*dst(a) = int(v)
		return nil
	}
}

func textField(dst func(*domain.Applicant) *string) fieldSetter {
	return func(a *domain.Applicant, raw string) error {
		*dst(a) = raw
		return nil
	}
}

var setters = map[string]fieldSetter{
	"age":                    intField(func(a *domain.Applicant) *int { return &a.Age }),
	"monthly_salary":         floatField(func(a *domain.Applicant) *float64 { return &a.MonthlySalary }),
	"years_of_employment":    floatField(func(a *domain.Applicant) *float64 { return &a.YearsOfEmployment }),
	"monthly_rent":           floatField(func(a *domain.Applicant) *float64 { return &a.MonthlyRent }),
	"family_size":            intField(func(a *domain.Applicant) *int { return &a.FamilySize }),
	"dependents":             intField(func(a *domain.Applicant) *int { return &a.Dependents }),
	"existing_loans":         intField(func(a *domain.Applicant) *int { return &a.ExistingLoans }),
	"school_fees":            floatField(func(a *domain.Applicant) *float64 { return &a.SchoolFees }),
	"college_fees":           floatField(func(a *domain.Applicant) *float64 { return &a.CollegeFees }),
	"travel_expenses":        floatField(func(a *domain.Applicant) *float64 { return &a.TravelExpenses }),
	"groceries_utilities":    floatField(func(a *domain.Applicant) *float64 { return &a.GroceriesUtilities }),
	"other_monthly_expenses": floatField(func(a *domain.Applicant) *float64 { return &a.OtherMonthlyExpenses }),
	"current_emi_amount":     floatField(func(a *domain.Applicant) *float64 { return &a.CurrentEMIAmount }),
	"credit_score":           floatField(func(a *domain.Applicant) *float64 { return &a.CreditScore }),
	"bank_balance":           floatField(func(a *domain.Applicant) *float64 { return &a.BankBalance }),
	"emergency_fund":         floatField(func(a *domain.Applicant) *float64 { return &a.EmergencyFund }),
	"requested_amount":       floatField(func(a *domain.Applicant) *float64 { return &a.RequestedAmount }),
	"requested_tenure":       intField(func(a *domain.Applicant) *int { return &a.RequestedTenure }),
	"max_monthly_emi": func(a *domain.Applicant, raw string) error {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		a.MaxMonthlyEMI = &v
		return nil
	},
	"education":       textField(func(a *domain.Applicant) *string { return &a.Education }),
	"employment_type": textField(func(a *domain.Applicant) *string { return &a.EmploymentType }),
	"emi_scenario":    textField(func(a *domain.Applicant) *string { return &a.EMIScenario }),
	"company_type":    textField(func(a *domain.Applicant) *string { return &a.CompanyType }),
	"house_type":      textField(func(a *domain.Applicant) *string { return &a.HouseType }),
	"marital_status":  textField(func(a *domain.Applicant) *string { return &a.MaritalStatus }),
	"gender":          textField(func(a *domain.Applicant) *string { return &a.Gender }),
}

// ReadApplicants returns up to limit parsed applicants and the number of rows that could not
// be parsed. Empty cells keep the field's zero value.
func (r *Reader) ReadApplicants(ctx context.Context, key string, limit int) ([]domain.Applicant, int, error) {
	format, err := tabular.FormatOf(key)
	if err != nil || format == tabular.FormatText {
		return nil, 0, &domain.ValidationError{Field: "dataset", Reason: "must be a .csv or .xlsx file"}
	}

	rc, err := r.storage.Open(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	maxRows := 0
	if limit > 0 {
		maxRows = limit + 1
	}
	rows, err := tabular.ReadRows(rc, format, maxRows)
	if err != nil {
		return nil, 0, domain.WrapError(domain.ErrInvalidInput, "read dataset "+key, err)
	}
	if len(rows) == 0 {
		return nil, 0, &domain.ValidationError{Field: "dataset", Reason: "has no header row"}
	}

	header := make([]fieldSetter, len(rows[0]))
	mapped := 0
	for i, name := range rows[0] {
		if set, ok := setters[strings.ToLower(name)]; ok {
			header[i] = set
			mapped++
		}
	}
	if mapped == 0 {
		return nil, 0, &domain.ValidationError{Field: "dataset", Reason: "header names no applicant fields"}
	}

	out := make([]domain.Applicant, 0, len(rows)-1)
	skipped := 0
	for i, row := range rows[1:] {
		applicant, err := parseRow(header, rows[0], row)
		if err != nil {
			skipped++
			slog.Debug("dataset_row_unparsable", "dataset", key, "row", i+2, "error", err)
			continue
		}
		out = append(out, applicant)
	}
	return out, skipped, nil
}

func parseRow(header []fieldSetter, names, row []string) (domain.Applicant, error) {
	var a domain.Applicant
	for i, set := range header {
		if set == nil || i >= len(row) || row[i] == "" {
			continue
		}
		if err := set(&a, row[i]); err != nil {
			return domain.Applicant{}, fmt.Errorf("column %s: %w", names[i], err)
		}
	}
	return a, nil
}
