// Package playback moves a media element to a search hit's timestamp.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"
)

const (
	// LeadMargin is subtracted from every jump target.
	LeadMargin = 0.3
	// DedupEpsilon is the distance below which a new target repeats the last.
	DedupEpsilon = 0.05
	// KeyframeNudge is added when the element lands exactly on the target.
	KeyframeNudge = 0.001

	DefaultSeekTimeout = 3 * time.Second
)

type State string

const (
	StateIdle     State = "idle"
	StateSeeking  State = "seeking"
	StateSettling State = "settling"
)

// Element is the player being driven. AwaitSeeked blocks until the seek
// started by the last SetPosition has completed.
type Element interface {
	Pause(ctx context.Context) error
	Play(ctx context.Context) error
	Position(ctx context.Context) (float64, error)
	SetPosition(ctx context.Context, sec float64) error
	AwaitSeeked(ctx context.Context) error
}

type Option func(*Synchronizer)

func WithSeekTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.seekTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Synchronizer allows a single seek in flight. Jumps that arrive while one is
// running are dropped, not queued.
type Synchronizer struct {
	element     Element
	seekTimeout time.Duration
	logger      *slog.Logger

	mu         sync.Mutex
	state      State
	lastTarget float64
	hasTarget  bool
	// done is closed when the seek in flight returns to idle.
	done chan struct{}
}

func New(element Element, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		element:     element,
		seekTimeout: DefaultSeekTimeout,
		logger:      slog.Default(),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Target returns where a jump to sec lands.
func Target(sec float64) float64 {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return 0
	}
	return math.Max(0, sec-LeadMargin)
}

// JumpTo starts a seek to sec minus the lead margin and reports whether it
// did. The seek runs in the background; Wait blocks until it is over.
func (s *Synchronizer) JumpTo(ctx context.Context, sec float64) bool {
	target := Target(sec)

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.logger.Debug("jump_ignored_in_flight", "target", target)
		return false
	}
	if s.hasTarget && math.Abs(target-s.lastTarget) < DedupEpsilon {
		s.mu.Unlock()
		s.logger.Debug("jump_ignored_duplicate", "target", target)
		return false
	}
	s.state = StateSeeking
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go func() {
		err := s.seek(ctx, target)
		if err != nil {
			s.logger.Debug("seek_failed", "target", target, "error", err)
		}
		s.finish(target, err == nil)
		close(done)
	}()
	return true
}

// Wait blocks until no seek is in flight or ctx is done.
func (s *Synchronizer) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
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

// finish returns to idle. Only a seek that completed becomes the
// deduplication target, so a failed jump can be retried.
func (s *Synchronizer) finish(target float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.done = nil
	if ok {
		s.lastTarget = target
		s.hasTarget = true
	}
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// seek resumes playback on every path once Pause succeeded.
func (s *Synchronizer) seek(ctx context.Context, target float64) (err error) {
	if err := s.element.Pause(ctx); err != nil {
		return err
	}
	defer func() {
		if err == nil {
			err = s.element.Play(ctx)
			return
		}
		playCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.seekTimeout)
		defer cancel()
		if playErr := s.element.Play(playCtx); playErr != nil {
			s.logger.Debug("resume_after_failed_seek", "target", target, "error", playErr)
		}
	}()

	if err := s.element.SetPosition(ctx, target); err != nil {
		return err
	}

	awaitCtx, cancel := context.WithTimeout(ctx, s.seekTimeout)
	err = s.element.AwaitSeeked(awaitCtx)
	cancel()
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return err
		}
		s.logger.Debug("seek_signal_timeout", "target", target, "timeout", s.seekTimeout)
	}

	s.setState(StateSettling)
	if pos, posErr := s.element.Position(ctx); posErr == nil && pos == target {
		return s.element.SetPosition(ctx, target+KeyframeNudge)
	}
	return nil
}

func (s *Synchronizer) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
