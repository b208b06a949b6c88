package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeElement struct {
	mu       sync.Mutex
	calls    []string
	position float64
	// landExactly makes Position report the requested target.
	landExactly bool
	release     chan struct{}
	pauseErr    error
	seekedErr   error
}

func (e *fakeElement) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeElement) Pause(context.Context) error {
	e.record("pause")
	return e.pauseErr
}

func (e *fakeElement) Play(context.Context) error {
	e.record("play")
	return nil
}

func (e *fakeElement) Position(context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.landExactly {
		return e.position, nil
	}
	return e.position + 0.04, nil
}

func (e *fakeElement) SetPosition(_ context.Context, sec float64) error {
	e.mu.Lock()
	e.position = sec
	e.mu.Unlock()
	e.record(fmt.Sprintf("set %.3f", sec))
	return nil
}

func (e *fakeElement) AwaitSeeked(ctx context.Context) error {
	e.record("await")
	if e.seekedErr != nil {
		return e.seekedErr
	}
	if e.release == nil {
		return nil
	}
	select {
	case <-e.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *fakeElement) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeElement) count(call string) int {
	n := 0
	for _, c := range e.snapshot() {
		if c == call {
			n++
		}
	}
	return n
}

func waitIdle(t *testing.T, s *Synchronizer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
}

func TestJumpToSeeksWithLeadMargin(t *testing.T) {
	el := &fakeElement{}
	s := New(el)

	if !s.JumpTo(context.Background(), 12.5) {
		t.Fatalf("expected seek to start")
	}
	waitIdle(t, s)

	want := []string{"pause", "set 12.200", "await", "play"}
	got := el.snapshot()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestJumpToClampsAtZero(t *testing.T) {
	if Target(0.1) != 0 || Target(-5) != 0 {
		t.Fatalf("targets before the start must clamp to 0")
	}
	el := &fakeElement{}
	s := New(el)
	s.JumpTo(context.Background(), 0.2)
	waitIdle(t, s)
	if el.count("set 0.000") != 1 {
		t.Fatalf("expected a seek to 0, got %v", el.snapshot())
	}
}

func TestDuplicateJumpSeeksOnce(t *testing.T) {
	el := &fakeElement{}
	s := New(el)

	s.JumpTo(context.Background(), 30)
	waitIdle(t, s)
	if s.JumpTo(context.Background(), 30.02) {
		t.Fatalf("jump within epsilon of the last target must be ignored")
	}
	waitIdle(t, s)

	if el.count("pause") != 1 {
		t.Fatalf("expected exactly one seek, got %v", el.snapshot())
	}

	if !s.JumpTo(context.Background(), 31) {
		t.Fatalf("a different target must seek again")
	}
	waitIdle(t, s)
	if el.count("pause") != 2 {
		t.Fatalf("expected two seeks, got %v", el.snapshot())
	}
}

func TestJumpWhileSeekingIsIgnored(t *testing.T) {
	el := &fakeElement{release: make(chan struct{})}
	s := New(el)

	if !s.JumpTo(context.Background(), 10) {
		t.Fatalf("expected first seek to start")
	}
	if s.JumpTo(context.Background(), 50) {
		t.Fatalf("jump must be ignored while a seek is in flight")
	}
	if s.State() == StateIdle {
		t.Fatalf("expected seek in flight")
	}
	close(el.release)
	waitIdle(t, s)

	for _, call := range el.snapshot() {
		if call == "set 49.700" {
			t.Fatalf("ignored jump must not reach the element")
		}
	}
}

func TestKeyframeNudgeWhenLandingExactly(t *testing.T) {
	el := &fakeElement{landExactly: true}
	s := New(el)

	s.JumpTo(context.Background(), 5.3)
	waitIdle(t, s)

	want := []string{"pause", "set 5.000", "await", "set 5.001", "play"}
	if fmt.Sprint(el.snapshot()) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", el.snapshot(), want)
	}
}

func TestSeekTimeoutStillResumes(t *testing.T) {
	el := &fakeElement{release: make(chan struct{})}
	s := New(el, WithSeekTimeout(10*time.Millisecond))

	s.JumpTo(context.Background(), 8)
	waitIdle(t, s)
	if el.count("play") != 1 {
		t.Fatalf("expected playback to resume after the seek timeout, got %v", el.snapshot())
	}
}

func TestElementErrorReturnsToIdle(t *testing.T) {
	el := &fakeElement{pauseErr: errors.New("socket closed")}
	s := New(el)

	if !s.JumpTo(context.Background(), 8) {
		t.Fatalf("expected seek to start")
	}
	waitIdle(t, s)
	if el.count("play") != 0 {
		t.Fatalf("no resume expected after a failed pause")
	}

	el.pauseErr = nil
	if !s.JumpTo(context.Background(), 8) {
		t.Fatalf("a failed jump must not count as the last target, calls=%v", el.snapshot())
	}
	waitIdle(t, s)
	if el.count("set 7.700") != 1 || el.count("play") != 1 {
		t.Fatalf("expected the retried jump to seek and resume, got %v", el.snapshot())
	}
}

func TestFailedSeekAfterPauseResumesPlayback(t *testing.T) {
	el := &fakeElement{seekedErr: errors.New("player quit")}
	s := New(el)

	if !s.JumpTo(context.Background(), 30) {
		t.Fatalf("expected seek to start")
	}
	waitIdle(t, s)

	want := []string{"pause", "set 29.700", "await", "play"}
	if fmt.Sprint(el.snapshot()) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", el.snapshot(), want)
	}

	el.seekedErr = nil
	if !s.JumpTo(context.Background(), 30) {
		t.Fatalf("the same target must be accepted again after a failed seek")
	}
	waitIdle(t, s)
	if el.count("play") != 2 {
		t.Fatalf("expected a second resume, got %v", el.snapshot())
	}
}

func TestWaitRacesWithNewJumps(t *testing.T) {
	el := &fakeElement{}
	s := New(el)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.JumpTo(context.Background(), float64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = s.Wait(context.Background())
		}
	}()
	wg.Wait()
	waitIdle(t, s)
}
