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

	"github.com/joho/godotenv"

	"github.com/kirillkom/media-search/internal/bootstrap"
	"github.com/kirillkom/media-search/internal/config"
	"github.com/kirillkom/media-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/media-search/internal/observability/logging"
	"github.com/kirillkom/media-search/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	cfg.RunMigrations = false
	cfg.ExtractionDispatch = bootstrap.DispatchNATS
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	if app.Queue == nil {
		logger.Error("worker_requires_queue")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	if cfg.WorkerMetricsPort != "" {
		server := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           workerMetrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics_server_failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	timeout := time.Duration(cfg.ExtractorTimeoutSeconds)*time.Second + time.Minute
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeExtractionRequested(ctx, func(handlerCtx context.Context, req nats.ExtractionRequest) error {
		if !req.EnqueuedAt.IsZero() {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(req.EnqueuedAt))
		}
		logger.Info("extraction_job_received", "job_id", req.JobID, "asset_id", req.AssetID)

		runCtx, cancel := context.WithTimeout(handlerCtx, timeout)
		defer cancel()

		started := time.Now()
		workerMetrics.StartJob()
		err := app.ExtractUC.RunJob(runCtx, req.JobID)
		workerMetrics.FinishJob(serviceName, time.Since(started), err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
