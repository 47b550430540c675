package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/emi-eligibility/internal/adapters/http"
	"github.com/kirillkom/emi-eligibility/internal/bootstrap"
	"github.com/kirillkom/emi-eligibility/internal/config"
	"github.com/kirillkom/emi-eligibility/internal/observability/logging"
	"github.com/kirillkom/emi-eligibility/internal/observability/metrics"
)

const serviceName = "emi-api"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	inferenceMetrics := metrics.NewInferenceMetrics(serviceName, httpMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, inferenceMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	services := httpadapter.Services{
		Predictor: app.PredictUC,
		Schema:    app.PredictUC,
		Models:    app.InspectUC,
	}
	// Optional services stay nil interfaces so their routes are not mounted.
	if app.BatchUC != nil {
		services.Batch = app.BatchUC
	}
	if app.SubmitUC != nil {
		services.Submitter = app.SubmitUC
	}
	if app.Predictions != nil {
		services.Predictions = app.Predictions
	}

	router, err := httpadapter.NewRouter(services, httpadapter.Options{
		Service:        serviceName,
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
		MaxInFlight:    cfg.APIMaxInFlight,
		MaxBodyBytes:   cfg.APIMaxBodyBytes,
		Metrics:        httpMetrics,
	})
	if err != nil {
		slog.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		slog.Error("api_listen_failed", "addr", server.Addr, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
