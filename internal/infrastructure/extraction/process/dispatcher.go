package process

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kirillkom/media-search/internal/core/domain"
)

// JobFunc runs one queued extraction job to completion.
type JobFunc func(ctx context.Context, jobID string) error

// SpawnDispatcher runs queued jobs on a supervising goroutine inside the api
// process. Dispatch returns as soon as the goroutine is started.
type SpawnDispatcher struct {
	logger *slog.Logger

	mu  sync.RWMutex
	run JobFunc
	wg  sync.WaitGroup
}

func NewSpawnDispatcher(logger *slog.Logger) *SpawnDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpawnDispatcher{logger: logger}
}

// Bind sets the job function. The usecase that owns it is built after the
// dispatcher it depends on.
func (d *SpawnDispatcher) Bind(run JobFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.run = run
}

func (d *SpawnDispatcher) Dispatch(ctx context.Context, job domain.ExtractionJob) error {
	d.mu.RLock()
	run := d.run
	d.mu.RUnlock()
	if run == nil {
		return errors.New("spawn dispatcher is not bound")
	}

	// The job outlives the request that queued it.
	jobCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := run(jobCtx, job.ID); err != nil {
			d.logger.Warn("extraction_job_failed", "job_id", job.ID, "asset_id", job.AssetID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until in-flight jobs finish or ctx is done.
func (d *SpawnDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
