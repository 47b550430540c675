package mlflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/resilience"
)

// Client talks to the MLflow tracking server REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(trackingURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(trackingURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

type modelVersionPayload struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	CurrentStage string `json:"current_stage"`
	RunID        string `json:"run_id"`
	Source       string `json:"source"`
	Tags         []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"tags"`
}

type keyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type runPayload struct {
	Run struct {
		Data struct {
			Metrics []keyValue `json:"metrics"`
			Params  []keyValue `json:"params"`
		} `json:"data"`
	} `json:"run"`
}

// LatestVersion returns the newest version of name at stage. Numeric version tags are reported
// as metrics.
func (c *Client) LatestVersion(ctx context.Context, name, stage string) (domain.ModelVersion, error) {
	request := map[string]any{
		"name":   name,
		"stages": []string{stage},
	}
	var response struct {
		ModelVersions []modelVersionPayload `json:"model_versions"`
	}

	err := c.execute(ctx, "mlflow.get_latest_versions", func(ctx context.Context) error {
		return doJSON(ctx, c.httpClient, http.MethodPost,
			c.baseURL+"/api/2.0/mlflow/registered-models/get-latest-versions",
			request, &response, "get latest versions")
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ModelVersion{}, domain.WrapError(domain.ErrModelUnavailable, "resolve "+name,
				fmt.Errorf("registered model %q does not exist", name))
		}
		return domain.ModelVersion{}, wrapRegistryError("resolve "+name, err)
	}

	var latest *modelVersionPayload
	for i := range response.ModelVersions {
		mv := &response.ModelVersions[i]
		if !strings.EqualFold(mv.CurrentStage, stage) {
			continue
		}
		if latest == nil || versionNumber(mv.Version) > versionNumber(latest.Version) {
			latest = mv
		}
	}
	if latest == nil {
		return domain.ModelVersion{}, domain.WrapError(domain.ErrModelUnavailable, "resolve "+name,
			fmt.Errorf("no version of %q at stage %s", name, stage))
	}

	version := domain.ModelVersion{
		Name:    latest.Name,
		Version: latest.Version,
		Stage:   latest.CurrentStage,
		RunID:   latest.RunID,
		Source:  latest.Source,
	}
	for _, tag := range latest.Tags {
		if v, err := strconv.ParseFloat(tag.Value, 64); err == nil {
			if version.Metrics == nil {
				version.Metrics = make(map[string]float64)
			}
			version.Metrics[tag.Key] = v
		}
	}
	return version, nil
}

// RunData returns the metrics and params logged on runID.
func (c *Client) RunData(ctx context.Context, runID string) (map[string]float64, map[string]string, error) {
	var response runPayload
	endpoint := c.baseURL + "/api/2.0/mlflow/runs/get?run_id=" + url.QueryEscape(runID)
	err := c.execute(ctx, "mlflow.get_run", func(ctx context.Context) error {
		return doJSON(ctx, c.httpClient, http.MethodGet, endpoint, nil, &response, "get run")
	})
	if err != nil {
		return nil, nil, wrapRegistryError("get run "+runID, err)
	}

	metrics := make(map[string]float64, len(response.Run.Data.Metrics))
	for _, m := range response.Run.Data.Metrics {
		if v, ok := toFloat(m.Value); ok {
			metrics[m.Key] = v
		}
	}
	params := make(map[string]string, len(response.Run.Data.Params))
	for _, p := range response.Run.Data.Params {
		params[p.Key] = fmt.Sprint(p.Value)
	}
	return metrics, params, nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyMLflowError)
}

func versionNumber(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return -1
	}
	return n
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
