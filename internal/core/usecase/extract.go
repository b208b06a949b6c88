package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/core/ports"
)

const jobErrorTail = 2048

type ExtractionUseCase struct {
	assets     ports.AssetRepository
	rows       ports.ExtractionRepository
	jobs       ports.JobRepository
	dispatcher ports.ExtractionDispatcher
	runner     ports.ExtractionRunner
	logger     *slog.Logger
}

func NewExtractionUseCase(
	assets ports.AssetRepository,
	rows ports.ExtractionRepository,
	jobs ports.JobRepository,
	dispatcher ports.ExtractionDispatcher,
	runner ports.ExtractionRunner,
	logger *slog.Logger,
) *ExtractionUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionUseCase{
		assets:     assets,
		rows:       rows,
		jobs:       jobs,
		dispatcher: dispatcher,
		runner:     runner,
		logger:     logger,
	}
}

// Trigger records a queued job and hands it to the dispatcher without waiting
// for the worker. A dispatch failure is recorded on the job.
func (uc *ExtractionUseCase) Trigger(ctx context.Context, asset *domain.MediaAsset) (*domain.ExtractionJob, error) {
	job := newJob(asset.ID, domain.ModeAsync)
	if err := uc.jobs.CreateJob(ctx, &job); err != nil {
		return nil, fmt.Errorf("create extraction job: %w", err)
	}

	if err := uc.dispatcher.Dispatch(ctx, job); err != nil {
		if finishErr := uc.jobs.FinishJob(ctx, job.ID, domain.JobFailed, nil, "dispatch: "+err.Error()); finishErr != nil {
			return &job, fmt.Errorf("dispatch extraction job: %w; mark failed: %v", err, finishErr)
		}
		return &job, fmt.Errorf("dispatch extraction job: %w", err)
	}

	uc.logger.Info("extraction_dispatched", "asset_id", asset.ID, "job_id", job.ID)
	return &job, nil
}

// RunSync runs the worker for an asset and waits for it. On exit code 0 the
// freshly written rows are read back; otherwise a *domain.WorkerFailure is returned.
func (uc *ExtractionUseCase) RunSync(ctx context.Context, assetID string) (*domain.ExtractionOutcome, error) {
	asset, err := uc.loadExtractable(ctx, assetID)
	if err != nil {
		return nil, err
	}

	job := newJob(asset.ID, domain.ModeSync)
	if err := uc.jobs.CreateJob(ctx, &job); err != nil {
		return nil, fmt.Errorf("create extraction job: %w", err)
	}

	if err := uc.execute(ctx, &job, asset); err != nil {
		return nil, err
	}

	outcome := &domain.ExtractionOutcome{Job: job}
	switch asset.Kind {
	case domain.KindVideo:
		captions, err := uc.rows.ListCaptions(ctx, asset.ID)
		if err != nil {
			return nil, fmt.Errorf("read captions after extraction: %w", err)
		}
		outcome.Captions = captions
	case domain.KindDocument:
		text, err := uc.rows.GetText(ctx, asset.ID)
		if err != nil {
			return nil, fmt.Errorf("read extracted text after extraction: %w", err)
		}
		outcome.Text = text
	}
	return outcome, nil
}

// RunJob executes a previously queued job. It is the entry point of the
// supervising runners (local spawn and queue consumer).
func (uc *ExtractionUseCase) RunJob(ctx context.Context, jobID string) error {
	job, err := uc.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch extraction job: %w", err)
	}
	if !job.Active() {
		uc.logger.Info("extraction_job_skipped", "job_id", job.ID, "status", job.Status)
		return nil
	}

	asset, err := uc.loadExtractable(ctx, job.AssetID)
	if err != nil {
		if finishErr := uc.jobs.FinishJob(ctx, job.ID, domain.JobFailed, nil, err.Error()); finishErr != nil {
			return fmt.Errorf("%w; mark failed: %v", err, finishErr)
		}
		return err
	}

	return uc.execute(ctx, job, asset)
}

func (uc *ExtractionUseCase) execute(ctx context.Context, job *domain.ExtractionJob, asset *domain.MediaAsset) error {
	if err := uc.jobs.MarkJobRunning(ctx, job.ID); err != nil {
		return fmt.Errorf("set job status=running: %w", err)
	}
	now := time.Now().UTC()
	job.Status = domain.JobRunning
	job.StartedAt = &now

	start := time.Now()
	result, runErr := uc.runner.Run(ctx, asset.ID, asset.StorageKey)
	if runErr != nil {
		result = domain.WorkerResult{ExitCode: -1, Stdout: result.Stdout, Stderr: strings.TrimSpace(result.Stderr + "\n" + runErr.Error())}
	}
	uc.logger.Info("extraction_finished",
		"asset_id", asset.ID,
		"job_id", job.ID,
		"mode", job.Mode,
		"exit_code", result.ExitCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	exitCode := result.ExitCode
	finished := time.Now().UTC()
	job.ExitCode = &exitCode
	job.FinishedAt = &finished

	if result.ExitCode != 0 {
		job.Status = domain.JobFailed
		job.Error = domain.TailText(result.Stderr, jobErrorTail)
		if err := uc.jobs.FinishJob(ctx, job.ID, domain.JobFailed, &exitCode, job.Error); err != nil {
			uc.logger.Error("extraction_job_finish_failed", "job_id", job.ID, "error", err)
		}
		return &domain.WorkerFailure{ExitCode: result.ExitCode, Stdout: result.Stdout, Stderr: result.Stderr}
	}

	job.Status = domain.JobDone
	if err := uc.jobs.FinishJob(ctx, job.ID, domain.JobDone, &exitCode, ""); err != nil {
		return fmt.Errorf("set job status=done: %w", err)
	}
	return nil
}

func (uc *ExtractionUseCase) loadExtractable(ctx context.Context, assetID string) (*domain.MediaAsset, error) {
	asset, err := uc.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("fetch asset by id: %w", err)
	}
	if !asset.Kind.Extractable() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract",
			errors.New("asset kind "+string(asset.Kind)+" has no extractor"))
	}
	return asset, nil
}

func newJob(assetID string, mode domain.ExtractionMode) domain.ExtractionJob {
	return domain.ExtractionJob{
		ID:        uuid.NewString(),
		AssetID:   assetID,
		Mode:      mode,
		Status:    domain.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
}
