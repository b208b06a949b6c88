package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/media-search/internal/core/domain"
)

func seedVideo(store *memoryStore, id string) {
	store.addAsset(domain.MediaAsset{
		ID:          id,
		DisplayName: id + ".mp4",
		StorageKey:  id + "_clip.mp4",
		Kind:        domain.KindVideo,
		Category:    "training",
		UploadedAt:  time.Now().UTC(),
	})
}

func writeCaptions(store *memoryStore, assetID string) {
	_ = store.ReplaceCaptions(context.Background(), assetID, []domain.CaptionSegment{
		{MediaAssetID: assetID, Ordinal: 0, StartSec: 1, EndSec: 3, Text: "hola mundo"},
		{MediaAssetID: assetID, Ordinal: 1, StartSec: 3, EndSec: 5, Text: "segunda línea"},
	})
}

func TestTriggerQueuesAndDispatches(t *testing.T) {
	store := newMemoryStore()
	seedVideo(store, "a1")
	dispatcher := &dispatcherFake{}
	uc := NewExtractionUseCase(store, store, store, dispatcher, &runnerFake{store: store}, nil)

	asset, _ := store.GetByID(context.Background(), "a1")
	job, err := uc.Trigger(context.Background(), asset)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if len(dispatcher.jobs) != 1 || dispatcher.jobs[0].ID != job.ID {
		t.Fatalf("expected job %s to be dispatched, got %+v", job.ID, dispatcher.jobs)
	}
	if got := store.job(job.ID); got.Status != domain.JobQueued || got.Mode != domain.ModeAsync {
		t.Fatalf("unexpected stored job %+v", got)
	}
}

func TestTriggerDispatchErrorMarksJobFailed(t *testing.T) {
	store := newMemoryStore()
	seedVideo(store, "a1")
	uc := NewExtractionUseCase(store, store, store, &dispatcherFake{err: errBoom}, &runnerFake{store: store}, nil)

	asset, _ := store.GetByID(context.Background(), "a1")
	job, err := uc.Trigger(context.Background(), asset)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected dispatch error, got %v", err)
	}
	if got := store.job(job.ID); got.Status != domain.JobFailed || !strings.Contains(got.Error, "boom") {
		t.Fatalf("expected failed job, got %+v", got)
	}
}

func TestRunSyncReturnsCaptions(t *testing.T) {
	store := newMemoryStore()
	seedVideo(store, "a1")
	runner := &runnerFake{store: store, write: writeCaptions}
	uc := NewExtractionUseCase(store, store, store, &dispatcherFake{}, runner, nil)

	outcome, err := uc.RunSync(context.Background(), "a1")
	if err != nil {
		t.Fatalf("run sync failed: %v", err)
	}
	if len(outcome.Captions) != 2 || outcome.Captions[0].Text != "hola mundo" {
		t.Fatalf("unexpected captions %+v", outcome.Captions)
	}
	if outcome.Job.Status != domain.JobDone || outcome.Job.ExitCode == nil || *outcome.Job.ExitCode != 0 {
		t.Fatalf("unexpected job %+v", outcome.Job)
	}
	if got := store.job(outcome.Job.ID); got.Status != domain.JobDone || got.Mode != domain.ModeSync {
		t.Fatalf("unexpected stored job %+v", got)
	}
}

func TestRunSyncReturnsExtractedText(t *testing.T) {
	store := newMemoryStore()
	store.addAsset(domain.MediaAsset{ID: "d1", DisplayName: "a.pdf", StorageKey: "d1_a.pdf", Kind: domain.KindDocument})
	runner := &runnerFake{store: store, write: func(s *memoryStore, id string) {
		_ = s.UpsertText(context.Background(), domain.ExtractedText{MediaAssetID: id, Text: "contenido"})
	}}
	uc := NewExtractionUseCase(store, store, store, &dispatcherFake{}, runner, nil)

	outcome, err := uc.RunSync(context.Background(), "d1")
	if err != nil {
		t.Fatalf("run sync failed: %v", err)
	}
	if outcome.Text == nil || outcome.Text.Text != "contenido" {
		t.Fatalf("unexpected text %+v", outcome.Text)
	}
}

func TestRunSyncNonZeroExitIsWorkerFailure(t *testing.T) {
	store := newMemoryStore()
	seedVideo(store, "a1")
	runner := &runnerFake{store: store, write: writeCaptions, result: domain.WorkerResult{
		ExitCode: 1,
		Stdout:   "partial",
		Stderr:   "ffmpeg: no subtitle stream",
	}}
	uc := NewExtractionUseCase(store, store, store, &dispatcherFake{}, runner, nil)

	_, err := uc.RunSync(context.Background(), "a1")
	var failure *domain.WorkerFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected worker failure, got %v", err)
	}
	if failure.ExitCode != 1 || failure.Stdout != "partial" || failure.Stderr != "ffmpeg: no subtitle stream" {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if !domain.IsKind(err, domain.ErrWorkerFailure) {
		t.Fatalf("worker failure must match ErrWorkerFailure")
	}
	job, _ := store.LatestJob(context.Background(), "a1")
	if job == nil || job.Status != domain.JobFailed || job.Error != "ffmpeg: no subtitle stream" {
		t.Fatalf("unexpected job %+v", job)
	}
	if len(store.captions["a1"]) != 0 {
		t.Fatalf("failed run must not leave caption rows")
	}
}

func TestRunSyncSpawnErrorIsWorkerFailure(t *testing.T) {
	store := newMemoryStore()
	seedVideo(store, "a1")
	runner := &runnerFake{store: store, err: errors.New("exec: python3: not found")}
	uc := NewExtractionUseCase(store, store, store, &dispatcherFake{}, runner, nil)

	_, err := uc.RunSync(context.Background(), "a1")
	var failure *domain.WorkerFailure
	if !errors.As(err, &failure) || failure.ExitCode != -1 {
		t.Fatalf("expected worker failure with exit -1, got %v", err)
	}
	if !strings.Contains(failure.Stderr, "not found") {
		t.Fatalf("spawn error must be reported in stderr, got %q", failure.Stderr)
	}
}

func TestRunSyncRejectsUnknownKind(t *testing.T) {
	store := newMemoryStore()
	store.addAsset(domain.MediaAsset{ID: "u1", Kind: domain.KindUnknown})
	runner := &runnerFake{store: store}
	uc := NewExtractionUseCase(store, store, store, &dispatcherFake{}, runner, nil)

	_, err := uc.RunSync(context.Background(), "u1")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("runner must not be called")
	}
}

func TestRunSyncMissingAsset(t *testing.T) {
	store := newMemoryStore()
	uc := NewExtractionUseCase(store, store, store, &dispatcherFake{}, &runnerFake{store: store}, nil)

	_, err := uc.RunSync(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrAssetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunJobExecutesQueuedJob(t *testing.T) {
	store := newMemoryStore()
	seedVideo(store, "a1")
	dispatcher := &dispatcherFake{}
	runner := &runnerFake{store: store, write: writeCaptions}
	uc := NewExtractionUseCase(store, store, store, dispatcher, runner, nil)

	asset, _ := store.GetByID(context.Background(), "a1")
	job, err := uc.Trigger(context.Background(), asset)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := uc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("run job failed: %v", err)
	}
	if got := store.job(job.ID); got.Status != domain.JobDone {
		t.Fatalf("expected done job, got %+v", got)
	}

	// A redelivered message for a finished job is a no-op.
	if err := uc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one worker run, got %d", runner.calls)
	}
}

func TestRunJobFailsWhenAssetDeleted(t *testing.T) {
	store := newMemoryStore()
	seedVideo(store, "a1")
	runner := &runnerFake{store: store}
	uc := NewExtractionUseCase(store, store, store, &dispatcherFake{}, runner, nil)

	asset, _ := store.GetByID(context.Background(), "a1")
	job, _ := uc.Trigger(context.Background(), asset)
	_, _ = store.SoftDeleteMany(context.Background(), []string{"a1"})

	if err := uc.RunJob(context.Background(), job.ID); !domain.IsKind(err, domain.ErrAssetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := store.job(job.ID); got.Status != domain.JobFailed {
		t.Fatalf("expected failed job, got %+v", got)
	}
	if runner.calls != 0 {
		t.Fatalf("runner must not be called for a deleted asset")
	}
}

func TestRunSyncStoresMultibyteStderrTail(t *testing.T) {
	store := newMemoryStore()
	seedVideo(store, "a1")
	stderr := strings.Repeat("ó", jobErrorTail) + " Liquidación falló"
	runner := &runnerFake{store: store, result: domain.WorkerResult{ExitCode: 2, Stderr: stderr}}
	uc := NewExtractionUseCase(store, store, store, &dispatcherFake{}, runner, nil)

	if _, err := uc.RunSync(context.Background(), "a1"); err == nil {
		t.Fatalf("expected worker failure")
	}
	job, _ := store.LatestJob(context.Background(), "a1")
	if job == nil || job.Status != domain.JobFailed {
		t.Fatalf("job must finish as failed, got %+v", job)
	}
	if !strings.HasSuffix(job.Error, "Liquidación falló") || len(job.Error) > jobErrorTail {
		t.Fatalf("unexpected stored tail of %d bytes", len(job.Error))
	}
}
