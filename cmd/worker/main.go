package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/emi-eligibility/internal/bootstrap"
	"github.com/kirillkom/emi-eligibility/internal/config"
	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/observability/logging"
	"github.com/kirillkom/emi-eligibility/internal/observability/metrics"
)

const serviceName = "emi-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	inferenceMetrics := metrics.NewInferenceMetrics(serviceName, workerMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, inferenceMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Queue == nil {
		slog.Error("worker_requires_nats", "hint", "set NATS_URL")
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubmitSubject)
	err = app.Queue.SubscribeSubmissions(ctx, func(handlerCtx context.Context, submission domain.Submission) error {
		start := time.Now()
		workerMetrics.ObserveQueueLag(serviceName, start.Sub(submission.SubmittedAt))
		workerMetrics.StartSubmission()

		processCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()
		prediction, err := app.ProcessUC.Handle(processCtx, submission)
		workerMetrics.FinishSubmission(serviceName, time.Since(start), prediction, err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
