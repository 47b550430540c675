package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
)

const (
	toolPredict     = "predict_emi_eligibility"
	toolEstimateEMI = "estimate_tenure_emi"
)

var numericFields = []struct {
	name        string
	description string
	required    bool
}{
	{"age", "Applicant age in years (18-75).", true},
	{"monthly_salary", "Monthly salary.", true},
	{"years_of_employment", "Years in current employment.", false},
	{"monthly_rent", "Monthly rent.", false},
	{"family_size", "Household size (1-5).", false},
	{"dependents", "Number of dependents (0-4).", false},
	{"existing_loans", "Number of existing loans.", false},
	{"school_fees", "Monthly school fees.", false},
	{"college_fees", "Monthly college fees.", false},
	{"travel_expenses", "Monthly travel expenses.", false},
	{"groceries_utilities", "Monthly groceries and utilities.", false},
	{"other_monthly_expenses", "Other monthly expenses.", false},
	{"current_emi_amount", "EMI currently being paid each month.", false},
	{"credit_score", "Credit score (300-900).", true},
	{"bank_balance", "Current bank balance.", false},
	{"emergency_fund", "Emergency fund savings.", false},
	{"requested_amount", "Requested loan amount (10000-1000000).", true},
	{"requested_tenure", "Requested tenure in months (6-60).", true},
	{"max_monthly_emi", "Largest EMI the applicant can afford. Required by standard-variant deployments.", false},
}

// NewServer exposes the predictor as MCP tools. vocab lists the categorical values the deployed
// schema accepts; nil falls back to the built-in vocabularies.
func NewServer(name, version string, predictor ports.Predictor, vocab domain.Vocabularies) *server.MCPServer {
	if vocab == nil {
		vocab = domain.DefaultVocabularies()
	}
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	h := &handlers{predictor: predictor}
	s.AddTool(predictTool(vocab), h.predict)
	s.AddTool(estimateTool(), h.estimateEMI)
	return s
}

func predictTool(vocab domain.Vocabularies) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Predict EMI eligibility and the maximum affordable monthly EMI for a loan applicant."),
	}
	for _, f := range numericFields {
		props := []mcp.PropertyOption{mcp.Description(f.description)}
		if f.required {
			props = append(props, mcp.Required())
		}
		opts = append(opts, mcp.WithNumber(f.name, props...))
	}
	for _, field := range domain.CategoricalFields {
		opts = append(opts, mcp.WithString(string(field),
			mcp.Required(),
			mcp.Description("One of: "+strings.Join(vocab[field], ", ")+" (case-insensitive)."),
		))
	}
	return mcp.NewTool(toolPredict, opts...)
}

func estimateTool() mcp.Tool {
	return mcp.NewTool(toolEstimateEMI,
		mcp.WithDescription("Estimate the monthly EMI for a principal over a tenure at the configured annual rate."),
		mcp.WithNumber("principal", mcp.Required(), mcp.Description("Loan principal."), mcp.Min(0)),
		mcp.WithNumber("tenure_months", mcp.Required(), mcp.Description("Tenure in months."), mcp.Min(1)),
	)
}

type handlers struct {
	predictor ports.Predictor
}

func (h *handlers) predict(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	applicant, err := applicantFromArguments(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	prediction, err := h.predictor.Predict(ctx, applicant)
	if err != nil {
		slog.Warn("mcp_predict_failed", "kind", domain.KindName(err), "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}

	raw, err := json.Marshal(prediction)
	if err != nil {
		return nil, fmt.Errorf("encode prediction: %w", err)
	}
	if prediction.Failed() {
		result := mcp.NewToolResultText(string(raw))
		result.IsError = true
		return result, nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (h *handlers) estimateEMI(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	principal, err := request.RequireFloat("principal")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	months, err := request.RequireFloat("tenure_months")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if months < 1 || months != float64(int(months)) {
		return mcp.NewToolResultError("tenure_months must be a positive whole number"), nil
	}

	emi := h.predictor.EstimateEMI(principal, int(months))
	return mcp.NewToolResultText(fmt.Sprintf("%.2f", emi)), nil
}

// applicantFromArguments decodes tool arguments through the applicant's JSON field names.
func applicantFromArguments(args map[string]any) (domain.Applicant, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return domain.Applicant{}, fmt.Errorf("encode arguments: %w", err)
	}
	var applicant domain.Applicant
	if err := json.Unmarshal(raw, &applicant); err != nil {
		return domain.Applicant{}, fmt.Errorf("invalid arguments: %w", err)
	}
	return applicant, nil
}

func toolErrorMessage(err error) string {
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	return "prediction failed: " + domain.KindName(err)
}
