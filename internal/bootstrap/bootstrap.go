package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/media-search/internal/config"
	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/core/ports"
	"github.com/kirillkom/media-search/internal/core/usecase"
	"github.com/kirillkom/media-search/internal/infrastructure/extraction/captions"
	"github.com/kirillkom/media-search/internal/infrastructure/extraction/document"
	"github.com/kirillkom/media-search/internal/infrastructure/extraction/process"
	"github.com/kirillkom/media-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/media-search/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/media-search/internal/infrastructure/resilience"
	"github.com/kirillkom/media-search/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/media-search/internal/infrastructure/storage/localfs"
)

const (
	DispatchSpawn = "spawn"
	DispatchNATS  = "nats"
)

type App struct {
	Config   config.Config
	Taxonomy domain.Taxonomy
	Storage  ports.ObjectStorage

	// Queue is nil unless extraction is dispatched over NATS.
	Queue *nats.Queue
	// Spawner is nil unless extraction runs inside this process.
	Spawner *process.SpawnDispatcher

	IngestUC    ports.AssetIngestor
	CatalogUC   ports.AssetCatalog
	ExtractUC   ports.ExtractionService
	SearchUC    ports.SearchService
	LifecycleUC ports.LifecycleService

	closeFn func()
}

// New wires the api and queue worker. Migrations run only when
// cfg.RunMigrations is set.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	taxonomy, err := config.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.RunMigrations {
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations_applied", "count", len(applied), "files", applied)
	}
	caps := probeCapabilities(ctx, db, logger)

	storage, closeStorage, err := NewStorage(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	assets := postgres.NewAssetRepository(db)
	rows := postgres.NewExtractionRepository(db)
	jobs := postgres.NewJobRepository(db)
	searchRepo := postgres.NewSearchRepository(db, caps, logger)

	runner := process.NewRunner(process.Config{
		Interpreter: cfg.ExtractorInterpreter,
		Path:        cfg.ExtractorPath,
		Timeout:     time.Duration(cfg.ExtractorTimeoutSeconds) * time.Second,
	}, logger)

	app := &App{
		Config:   cfg,
		Taxonomy: taxonomy,
		Storage:  storage,
	}

	var dispatcher ports.ExtractionDispatcher
	switch cfg.ExtractionDispatch {
	case DispatchNATS:
		executor := resilience.NewExecutor(resilience.DispatchConfig(), resilience.WithLogger(logger))
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			closeStorage()
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		dispatcher = queue
	case DispatchSpawn, "":
		app.Spawner = process.NewSpawnDispatcher(logger)
		dispatcher = app.Spawner
	default:
		closeStorage()
		_ = db.Close()
		return nil, fmt.Errorf("unknown EXTRACTION_DISPATCH %q", cfg.ExtractionDispatch)
	}

	extractUC := usecase.NewExtractionUseCase(assets, rows, jobs, dispatcher, runner, logger)
	if app.Spawner != nil {
		app.Spawner.Bind(extractUC.RunJob)
	}

	app.ExtractUC = extractUC
	app.IngestUC = usecase.NewIngestAssetUseCase(assets, storage, extractUC, taxonomy, cfg.MaxUploadBytes, logger)
	app.CatalogUC = usecase.NewCatalogUseCase(assets, rows, jobs, storage)
	app.SearchUC = usecase.NewSearchUseCase(searchRepo, storage, cfg.SearchLimit, logger)
	app.LifecycleUC = usecase.NewLifecycleUseCase(assets, logger)
	app.closeFn = func() {
		if app.Queue != nil {
			app.Queue.Close()
		}
		closeStorage()
		_ = db.Close()
	}
	return app, nil
}

// Drain waits for extraction jobs started by this process.
func (a *App) Drain(ctx context.Context) error {
	if a.Spawner == nil {
		return nil
	}
	return a.Spawner.Wait(ctx)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Extractor is the wiring of the out-of-process extraction worker.
type Extractor struct {
	Worker *usecase.WorkerUseCase

	closeFn func()
}

func NewExtractor(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Extractor, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	storage, closeStorage, err := NewStorage(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	worker := usecase.NewWorkerUseCase(
		postgres.NewAssetRepository(db),
		postgres.NewExtractionRepository(db),
		storage,
		captions.VideoExtractor{
			TranscribeCommand: cfg.TranscribeCommand,
			FFmpegPath:        cfg.FFmpegPath,
		},
		document.Extractor{},
		cfg.ExtractorTempDir,
		logger,
	)
	return &Extractor{
		Worker: worker,
		closeFn: func() {
			closeStorage()
			_ = db.Close()
		},
	}, nil
}

func (e *Extractor) Close() {
	if e.closeFn != nil {
		e.closeFn()
	}
}

// NewStorage builds the object store selected by STORAGE_BACKEND.
func NewStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, func(), error) {
	switch cfg.StorageBackend {
	case "gcs":
		store, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			PublicBaseURL:   cfg.GCSPublicBaseURL,
			EmulatorHost:    cfg.GCSEmulatorHost,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "local", "":
		store, err := localfs.New(cfg.StoragePath, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

func probeCapabilities(ctx context.Context, db *sql.DB, logger *slog.Logger) postgres.Capabilities {
	caps, err := postgres.ProbeCapabilities(ctx, db)
	if err != nil {
		logger.Warn("schema_probe_failed", "error", err)
		return postgres.FullCapabilities()
	}
	logger.Info("schema_capabilities",
		"extracted_texts", caps.ExtractedTexts,
		"caption_start_sec", caps.CaptionStartSec,
		"unicode_lower", caps.UnicodeLower,
	)
	if !caps.UnicodeLower {
		logger.Warn("search_case_folding_ascii_only",
			"hint", "create the database with a UTF-8 ctype such as en_US.UTF-8 or an ICU locale",
		)
	}
	return caps
}
