package mlflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/resilience"
)

// ServedModel calls an MLflow scoring server for a resolved model version.
type ServedModel struct {
	version    domain.ModelVersion
	endpoint   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type dataframeSplit struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

func (m *ServedModel) Version() domain.ModelVersion { return m.version }

// Concurrent is always true: scoring servers handle parallel requests.
func (m *ServedModel) Concurrent() bool { return true }

func (m *ServedModel) Predict(ctx context.Context, vector domain.FeatureVector) (domain.RawPrediction, error) {
	payload := map[string]any{
		"dataframe_split": dataframeSplit{
			Columns: vector.Columns,
			Data:    [][]any{vector.Row()},
		},
	}
	operation := "mlflow.invocations." + m.version.Name

	out, err := resilience.Call(ctx, m.executor, operation, func(ctx context.Context) (domain.RawPrediction, error) {
		var raw json.RawMessage
		if err := doJSON(ctx, m.httpClient, http.MethodPost, m.endpoint, payload, &raw, "invocations"); err != nil {
			return domain.RawPrediction{}, err
		}
		return decodePredictions(raw)
	}, classifyMLflowError)
	if err != nil {
		return domain.RawPrediction{}, wrapInferenceError("predict "+m.version.Name, err)
	}
	return out, nil
}

// decodePredictions accepts both the {"predictions": [...]} envelope and a bare list, and returns
// the output for the single submitted row.
func decodePredictions(raw json.RawMessage) (domain.RawPrediction, error) {
	var list []any
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return domain.RawPrediction{}, fmt.Errorf("decode predictions: %w", err)
		}
	} else {
		var envelope struct {
			Predictions []any `json:"predictions"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return domain.RawPrediction{}, fmt.Errorf("decode predictions: %w", err)
		}
		list = envelope.Predictions
	}
	if len(list) != 1 {
		return domain.RawPrediction{}, fmt.Errorf("expected 1 prediction, got %d", len(list))
	}

	value := list[0]
	if row, ok := value.(map[string]any); ok {
		if len(row) != 1 {
			return domain.RawPrediction{}, errors.New("prediction row has more than one output column")
		}
		for _, v := range row {
			value = v
		}
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return domain.RawPrediction{Value: value}, nil
}
