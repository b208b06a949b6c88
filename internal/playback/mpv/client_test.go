package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/media-search/internal/playback"
)

var _ playback.Element = (*Client)(nil)

// fakeMPV answers IPC commands the way mpv does and remembers them.
type fakeMPV struct {
	conn net.Conn

	mu       sync.Mutex
	commands [][]any
	position float64
	paused   bool
	emitSeek bool
}

func startFakeMPV(t *testing.T) (*Client, *fakeMPV) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	srv := &fakeMPV{conn: serverConn, emitSeek: true}
	go srv.serve()
	client := NewClient(clientConn)
	t.Cleanup(func() {
		_ = client.Close()
		_ = serverConn.Close()
	})
	return client, srv
}

func (s *fakeMPV) serve() {
	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		var req struct {
			Command   []any `json:"command"`
			RequestID int64 `json:"request_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		s.mu.Lock()
		s.commands = append(s.commands, req.Command)
		s.mu.Unlock()
		s.handle(req.RequestID, req.Command)
	}
}

func (s *fakeMPV) write(v any) {
	raw, _ := json.Marshal(v)
	_, _ = s.conn.Write(append(raw, '\n'))
}

func (s *fakeMPV) handle(id int64, cmd []any) {
	name := fmt.Sprint(cmd[0])
	switch {
	case name == "get_property" && cmd[1] == "time-pos":
		s.mu.Lock()
		pos := s.position
		s.mu.Unlock()
		s.write(map[string]any{"request_id": id, "error": "success", "data": pos})
	case name == "set_property" && cmd[1] == "time-pos":
		s.mu.Lock()
		s.position = cmd[2].(float64)
		emit := s.emitSeek
		s.mu.Unlock()
		s.write(map[string]any{"request_id": id, "error": "success"})
		if emit {
			s.write(map[string]any{"event": "seek"})
			s.write(map[string]any{"event": "playback-restart"})
		}
	case name == "set_property" && cmd[1] == "pause":
		s.mu.Lock()
		s.paused = cmd[2].(bool)
		s.mu.Unlock()
		s.write(map[string]any{"request_id": id, "error": "success"})
	default:
		s.write(map[string]any{"request_id": id, "error": "invalid parameter"})
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClientPauseAndPlay(t *testing.T) {
	client, srv := startFakeMPV(t)
	ctx := testCtx(t)

	if err := client.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	srv.mu.Lock()
	paused := srv.paused
	srv.mu.Unlock()
	if !paused {
		t.Fatalf("expected player paused")
	}
	if err := client.Play(ctx); err != nil {
		t.Fatalf("play: %v", err)
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.paused {
		t.Fatalf("expected player resumed")
	}
}

func TestClientSetPositionAndAwaitSeeked(t *testing.T) {
	client, _ := startFakeMPV(t)
	ctx := testCtx(t)

	if err := client.SetPosition(ctx, 42.5); err != nil {
		t.Fatalf("set position: %v", err)
	}
	if err := client.AwaitSeeked(ctx); err != nil {
		t.Fatalf("await seeked: %v", err)
	}
	pos, err := client.Position(ctx)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos != 42.5 {
		t.Fatalf("expected 42.5, got %v", pos)
	}
}

func TestClientAwaitSeekedHonoursContext(t *testing.T) {
	client, srv := startFakeMPV(t)
	srv.mu.Lock()
	srv.emitSeek = false
	srv.mu.Unlock()

	if err := client.SetPosition(testCtx(t), 3); err != nil {
		t.Fatalf("set position: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := client.AwaitSeeked(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestClientCommandError(t *testing.T) {
	client, _ := startFakeMPV(t)
	if _, err := client.command(testCtx(t), "loadfile"); err == nil {
		t.Fatalf("expected mpv error to surface")
	}
}

func TestClientClosedConnection(t *testing.T) {
	client, srv := startFakeMPV(t)
	_ = srv.conn.Close()

	select {
	case <-client.closed:
	case <-time.After(time.Second):
		t.Fatalf("read loop did not notice the closed connection")
	}
	if err := client.Pause(testCtx(t)); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSynchronizerDrivesMPV(t *testing.T) {
	client, srv := startFakeMPV(t)
	synchronizer := playback.New(client)

	if !synchronizer.JumpTo(context.Background(), 61.3) {
		t.Fatalf("expected seek to start")
	}
	if err := synchronizer.Wait(testCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.paused {
		t.Fatalf("expected playback resumed")
	}
	if math.Abs(srv.position-61) > 0.01 {
		t.Fatalf("unexpected final position %v", srv.position)
	}
}
