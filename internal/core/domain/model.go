package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type ModelRole string

const (
	RoleClassifier ModelRole = "classifier"
	RoleRegressor  ModelRole = "regressor"
)

const StageProduction = "Production"

// ModelRef identifies a registered model at a lifecycle stage.
type ModelRef struct {
	Name  string `json:"name"`
	Stage string `json:"stage"`
}

func (r ModelRef) String() string {
	return r.Name + "/" + r.Stage
}

// ModelVersion is the concrete registry entry a ModelRef resolved to.
type ModelVersion struct {
	Name    string             `json:"name"`
	Version string             `json:"version"`
	Stage   string             `json:"stage"`
	RunID   string             `json:"run_id,omitempty"`
	Source  string             `json:"-"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Params  map[string]string  `json:"params,omitempty"`
}

// RawPrediction is a single undecoded model output. Classifiers may answer with a label
// string or a class index; regressors answer with a number.
type RawPrediction struct {
	Value any
}

// Float returns the prediction as a number.
func (p RawPrediction) Float() (float64, error) {
	switch v := p.Value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("prediction %q is not numeric", v)
		}
		return f, nil
	case []any:
		if len(v) == 1 {
			return RawPrediction{Value: v[0]}.Float()
		}
	}
	return 0, fmt.Errorf("prediction of type %T is not numeric", p.Value)
}

// Key returns the prediction in the form used for label table lookups.
func (p RawPrediction) Key() string {
	switch v := p.Value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		if len(v) == 1 {
			return RawPrediction{Value: v[0]}.Key()
		}
	}
	return fmt.Sprint(p.Value)
}
