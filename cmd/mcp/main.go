// Command mcp serves the media-search tools over MCP stdio.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/media-search/internal/adapters/mcp"
	"github.com/kirillkom/media-search/internal/client"
	"github.com/kirillkom/media-search/internal/infrastructure/resilience"
	"github.com/kirillkom/media-search/internal/observability/logging"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()
	// stdout carries the protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", envOr("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	executor := resilience.NewExecutor(resilience.ClientConfig(), resilience.WithLogger(logger))
	api := client.New(envOr("MEDIA_API_URL", "http://localhost:8080"), client.WithExecutor(executor))

	logger.Info("mcp_stdio_started", "version", version)
	if err := server.ServeStdio(mcpadapter.NewServer(api, version)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
