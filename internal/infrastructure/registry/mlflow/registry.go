package mlflow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
)

// Registry resolves models through the tracking server and serves them through their scoring
// endpoints. Endpoints may contain {name}, {version} and {stage} placeholders.
type Registry struct {
	client     *Client
	endpoints  map[string]string
	httpClient *http.Client
}

func NewRegistry(client *Client, endpoints map[string]string, inferenceTimeout time.Duration) *Registry {
	if inferenceTimeout <= 0 {
		inferenceTimeout = 15 * time.Second
	}
	return &Registry{
		client:     client,
		endpoints:  maps.Clone(endpoints),
		httpClient: &http.Client{Timeout: inferenceTimeout},
	}
}

func (r *Registry) Resolve(ctx context.Context, ref domain.ModelRef) (domain.ModelVersion, error) {
	version, err := r.client.LatestVersion(ctx, ref.Name, ref.Stage)
	if err != nil {
		return domain.ModelVersion{}, err
	}
	if version.RunID == "" {
		return version, nil
	}

	runMetrics, params, err := r.client.RunData(ctx, version.RunID)
	if err != nil {
		slog.Warn("mlflow_run_lookup_failed", "model", ref.Name, "version", version.Version, "error", err)
		return version, nil
	}
	merged := runMetrics
	maps.Copy(merged, version.Metrics)
	version.Metrics = merged
	version.Params = params
	return version, nil
}

func (r *Registry) Load(ctx context.Context, ref domain.ModelRef) (ports.Model, error) {
	template, ok := r.endpoints[ref.Name]
	if !ok || strings.TrimSpace(template) == "" {
		return nil, domain.WrapError(domain.ErrModelUnavailable, "load "+ref.String(),
			fmt.Errorf("no serving endpoint configured for %q", ref.Name))
	}

	version, err := r.client.LatestVersion(ctx, ref.Name, ref.Stage)
	if err != nil {
		return nil, err
	}

	endpoint := strings.NewReplacer(
		"{name}", version.Name,
		"{version}", version.Version,
		"{stage}", strings.ToLower(version.Stage),
	).Replace(template)
	endpoint = strings.TrimRight(endpoint, "/")
	if !strings.HasSuffix(endpoint, "/invocations") {
		endpoint += "/invocations"
	}

	slog.Info("model_loaded", "model", version.Name, "version", version.Version, "stage", version.Stage)
	return &ServedModel{
		version:    version,
		endpoint:   endpoint,
		httpClient: r.httpClient,
		executor:   r.client.executor,
	}, nil
}
