package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/ports"
	"github.com/kirillkom/emi-eligibility/internal/observability/metrics"
)

// Services are the inbound ports served over HTTP. Batch, Submitter and Predictions are
// optional; their routes are not mounted when nil.
type Services struct {
	Predictor   ports.Predictor
	Schema      ports.SchemaReader
	Models      ports.ModelInspector
	Batch       ports.BatchScorer
	Submitter   ports.ApplicationSubmitter
	Predictions ports.PredictionReader
}

type Options struct {
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	MaxBodyBytes     int64
	Metrics          *metrics.HTTPServerMetrics
}

type Router struct {
	services  Services
	opts      Options
	validator *requestValidator
}

func NewRouter(services Services, opts Options) (*Router, error) {
	if services.Predictor == nil || services.Schema == nil || services.Models == nil {
		return nil, fmt.Errorf("http router: predictor, schema and model services are required")
	}
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = 250 * time.Millisecond
	}
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Router{services: services, opts: opts, validator: validator}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/predictions", rt.createPrediction)
	mux.HandleFunc("POST /v1/emi/estimate", rt.estimateEMI)
	mux.HandleFunc("GET /v1/schema", rt.schema)
	mux.HandleFunc("GET /v1/models", rt.listModels)
	mux.HandleFunc("POST /v1/models/reload", rt.reloadModels)
	if rt.services.Predictions != nil {
		mux.HandleFunc("GET /v1/predictions/{prediction_id}", rt.getPrediction)
	}
	if rt.services.Batch != nil {
		mux.HandleFunc("POST /v1/batch-scores", rt.scoreDataset)
	}
	if rt.services.Submitter != nil {
		mux.HandleFunc("POST /v1/submissions", rt.submitApplication)
	}

	var onReject rejectFunc
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
		onReject = func(reason string) { rt.opts.Metrics.RecordRejected(rt.opts.Service, reason) }
	}

	var handler http.Handler = rt.validator.middleware(mux)
	handler = bodyLimitMiddleware(handler, rt.opts.MaxBodyBytes)
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait, onReject)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, onReject)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createPrediction(w http.ResponseWriter, r *http.Request) {
	var applicant domain.Applicant
	if err := decodeJSON(r, &applicant); err != nil {
		writeError(w, r, err)
		return
	}

	prediction, err := rt.services.Predictor.Predict(r.Context(), applicant)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if prediction.Failed() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, prediction)
}

func (rt *Router) getPrediction(w http.ResponseWriter, r *http.Request) {
	prediction, err := rt.services.Predictions.GetPrediction(r.Context(), r.PathValue("prediction_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (rt *Router) estimateEMI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Principal    float64 `json:"principal"`
		TenureMonths int     `json:"tenure_months"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TenureMonths <= 0 {
		writeError(w, r, &domain.ValidationError{Field: "tenure_months", Reason: "must be positive"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"principal":     req.Principal,
		"tenure_months": req.TenureMonths,
		"emi":           rt.services.Predictor.EstimateEMI(req.Principal, req.TenureMonths),
	})
}

func (rt *Router) schema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.services.Schema.Schema())
}

func (rt *Router) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": rt.services.Models.Describe(r.Context())})
}

func (rt *Router) reloadModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"purged": rt.services.Models.Reload()})
}

func (rt *Router) scoreDataset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dataset string `json:"dataset"`
		Limit   int    `json:"limit"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	distribution, err := rt.services.Batch.Score(r.Context(), req.Dataset, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordBatch(rt.opts.Service, distribution.Scored, distribution.Skipped)
	}
	writeJSON(w, http.StatusOK, distribution)
}

func (rt *Router) submitApplication(w http.ResponseWriter, r *http.Request) {
	var applicant domain.Applicant
	if err := decodeJSON(r, &applicant); err != nil {
		writeError(w, r, err)
		return
	}

	submission, err := rt.services.Submitter.Submit(r.Context(), applicant)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/predictions/"+submission.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":           submission.ID,
		"submitted_at": submission.SubmittedAt,
		"status":       "queued",
	})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"kind", domain.KindName(err),
			"error", err,
		)
	}
	writeJSON(w, status, errorBody(err, status))
}
