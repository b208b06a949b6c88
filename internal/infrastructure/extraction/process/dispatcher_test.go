package process

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/media-search/internal/core/domain"
)

func TestSpawnDispatcherReturnsBeforeJobFinishes(t *testing.T) {
	d := NewSpawnDispatcher(nil)
	release := make(chan struct{})
	var ran atomic.Int32
	d.Bind(func(ctx context.Context, jobID string) error {
		<-release
		if ctx.Err() != nil {
			t.Errorf("job context must survive the request: %v", ctx.Err())
		}
		ran.Add(1)
		return nil
	})

	reqCtx, cancel := context.WithCancel(context.Background())
	if err := d.Dispatch(reqCtx, domain.ExtractionJob{ID: "j1", AssetID: "a1"}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	cancel()
	if ran.Load() != 0 {
		t.Fatalf("dispatch must not wait for the job")
	}
	close(release)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := d.Wait(waitCtx); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if ran.Load() != 1 {
		t.Fatalf("expected job to run once, got %d", ran.Load())
	}
}

func TestSpawnDispatcherUnbound(t *testing.T) {
	if err := NewSpawnDispatcher(nil).Dispatch(context.Background(), domain.ExtractionJob{ID: "j1"}); err == nil {
		t.Fatalf("expected error when unbound")
	}
}
