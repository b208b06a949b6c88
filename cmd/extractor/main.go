// Command extractor fills the caption or text rows of one asset.
//
//	extractor <assetId> <sourceLocator>
//
// Exit status is 0 on success, 1 when extraction or storage fails and 2 on
// bad usage. Logs go to stderr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/media-search/internal/bootstrap"
	"github.com/kirillkom/media-search/internal/config"
	"github.com/kirillkom/media-search/internal/observability/logging"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 2 || args[0] == "" {
		fmt.Fprintln(os.Stderr, "usage: extractor <assetId> <sourceLocator>")
		return exitUsage
	}
	assetID, sourceLocator := args[0], args[1]

	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "extractor", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor, err := bootstrap.NewExtractor(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		return exitFailure
	}
	defer extractor.Close()

	if err := extractor.Worker.Extract(ctx, assetID, sourceLocator); err != nil {
		logger.Error("extraction_failed", "asset_id", assetID, "source", sourceLocator, "error", err)
		return exitFailure
	}
	logger.Info("extraction_completed", "asset_id", assetID)
	return exitOK
}
