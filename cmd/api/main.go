package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/kirillkom/media-search/internal/adapters/http"
	"github.com/kirillkom/media-search/internal/bootstrap"
	"github.com/kirillkom/media-search/internal/config"
	"github.com/kirillkom/media-search/internal/observability/logging"
	"github.com/kirillkom/media-search/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := httpadapter.LoadOpenAPI(ctx); err != nil {
		logger.Error("openapi_invalid", "error", err)
		os.Exit(1)
	}

	logger.Info("config_loaded",
		"postgres_dsn", cfg.PostgresDSN,
		"storage_backend", cfg.StorageBackend,
		"extraction_dispatch", cfg.ExtractionDispatch,
		"extractor_path", cfg.ExtractorPath,
		"extractor_timeout", time.Duration(cfg.ExtractorTimeoutSeconds)*time.Second,
		"max_upload_bytes", cfg.MaxUploadBytes,
	)

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Ingest:    app.IngestUC,
		Catalog:   app.CatalogUC,
		Extract:   app.ExtractUC,
		Search:    app.SearchUC,
		Lifecycle: app.LifecycleUC,
		Files:     app.Storage,
	}, metrics.NewHTTPServerMetrics("api")).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: time.Duration(cfg.ExtractorTimeoutSeconds+60) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	if err := app.Drain(shutdownCtx); err != nil {
		logger.Warn("extraction_drain_incomplete", "error", err)
	}
}
