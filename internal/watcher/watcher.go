// Package watcher polls an asset's captions until the extraction worker has
// written at least one row.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/media-search/internal/core/domain"
)

const DefaultInterval = 2 * time.Second

type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
	StateDone    State = "done"
	StateStalled State = "stalled"
)

// Fetcher returns the caption rows currently stored for an asset. An empty
// slice means extraction has not produced anything yet.
type Fetcher interface {
	Captions(ctx context.Context, assetID string) ([]domain.CaptionSegment, error)
}

// Policy controls the poll cadence. MaxAttempts = 0 polls until stopped.
type Policy struct {
	Interval          time.Duration
	MaxAttempts       int
	BackoffMultiplier float64
	MaxInterval       time.Duration
}

func (p Policy) normalize() Policy {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = 1
	}
	if p.MaxInterval > 0 && p.MaxInterval < p.Interval {
		p.MaxInterval = p.Interval
	}
	return p
}

func (p Policy) next(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * p.BackoffMultiplier)
	if p.MaxInterval > 0 && next > p.MaxInterval {
		next = p.MaxInterval
	}
	return next
}

// Watcher runs at most one poll loop at a time.
type Watcher struct {
	fetcher Fetcher
	policy  Policy
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	attempts int
}

func New(fetcher Fetcher, policy Policy, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fetcher: fetcher,
		policy:  policy.normalize(),
		logger:  logger,
		state:   StateIdle,
	}
}

// Start begins polling assetID. The first request is sent immediately. It is
// a no-op returning false while a previous loop is still polling. onDone runs
// on the poll goroutine with the first non-empty result.
func (w *Watcher) Start(ctx context.Context, assetID string, onDone func([]domain.CaptionSegment)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StatePolling {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.gen++
	w.state = StatePolling
	w.cancel = cancel
	w.done = make(chan struct{})
	w.attempts = 0

	go w.loop(loopCtx, w.gen, w.done, assetID, onDone)
	return true
}

// Stop cancels the running loop, if any, and returns to idle.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.gen++
	w.state = StateIdle
}

// Wait blocks until the current loop has exited or ctx is done.
func (w *Watcher) Wait(ctx context.Context) error {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Attempts reports how many requests the current or last loop has sent.
func (w *Watcher) Attempts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts
}

func (w *Watcher) loop(
	ctx context.Context,
	gen uint64,
	done chan struct{},
	assetID string,
	onDone func([]domain.CaptionSegment),
) {
	defer close(done)

	interval := w.policy.Interval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.finish(gen, StateIdle)
			return
		case <-timer.C:
		}

		attempt := w.recordAttempt(gen)
		rows, err := w.fetcher.Captions(ctx, assetID)
		switch {
		case err != nil:
			w.logger.Debug("watch_poll_failed", "asset_id", assetID, "attempt", attempt, "error", err)
		case len(rows) > 0:
			if w.finish(gen, StateDone) && onDone != nil {
				onDone(rows)
			}
			return
		}

		if w.policy.MaxAttempts > 0 && attempt >= w.policy.MaxAttempts {
			w.logger.Info("watch_stalled", "asset_id", assetID, "attempts", attempt)
			w.finish(gen, StateStalled)
			return
		}
		interval = w.policy.next(interval)
		timer.Reset(interval)
	}
}

func (w *Watcher) recordAttempt(gen uint64) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen == gen {
		w.attempts++
	}
	return w.attempts
}

// finish moves the loop identified by gen to a terminal state. It reports
// false when the loop was already stopped or replaced.
func (w *Watcher) finish(gen uint64, state State) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen || w.state != StatePolling {
		return false
	}
	w.state = state
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	return true
}
