package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/emi-eligibility/internal/adapters/mcp"
	"github.com/kirillkom/emi-eligibility/internal/bootstrap"
	"github.com/kirillkom/emi-eligibility/internal/config"
	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/observability/logging"
)

const serviceName = "emi-mcp"

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol.
	slog.SetDefault(logging.NewStderrJSONLogger(serviceName, cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer("emi-eligibility", "1.0.0", app.PredictUC, domain.VocabulariesFromSchema(app.PredictUC.Schema()))
	if err := server.ServeStdio(s); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
