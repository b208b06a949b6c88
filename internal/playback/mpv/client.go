// Package mpv drives an mpv player through its JSON IPC socket
// (mpv --input-ipc-server=/path/to/socket).
package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
)

var ErrClosed = errors.New("mpv: connection closed")

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type message struct {
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
}

type reply struct {
	data json.RawMessage
	err  error
}

// Client implements playback.Element.
type Client struct {
	conn net.Conn

	writeMu sync.Mutex
	enc     *json.Encoder

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan reply
	seeked  chan struct{}
	readErr error
	closed  chan struct{}
}

func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial mpv socket: %w", err)
	}
	return NewClient(conn), nil
}

func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		pending: make(map[int64]chan reply),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Pause(ctx context.Context) error {
	_, err := c.command(ctx, "set_property", "pause", true)
	return err
}

func (c *Client) Play(ctx context.Context) error {
	_, err := c.command(ctx, "set_property", "pause", false)
	return err
}

func (c *Client) Position(ctx context.Context) (float64, error) {
	data, err := c.command(ctx, "get_property", "time-pos")
	if err != nil {
		return 0, err
	}
	var pos float64
	if err := json.Unmarshal(data, &pos); err != nil {
		return 0, fmt.Errorf("decode time-pos: %w", err)
	}
	return pos, nil
}

// SetPosition arms the seek-completed signal before asking mpv to seek.
func (c *Client) SetPosition(ctx context.Context, sec float64) error {
	c.mu.Lock()
	c.seeked = make(chan struct{})
	c.mu.Unlock()

	_, err := c.command(ctx, "set_property", "time-pos", sec)
	return err
}

// AwaitSeeked waits for mpv's playback-restart event after the last
// SetPosition.
func (c *Client) AwaitSeeked(ctx context.Context) error {
	c.mu.Lock()
	seeked := c.seeked
	c.mu.Unlock()
	if seeked == nil {
		return nil
	}
	select {
	case <-seeked:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.readErr != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan reply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.enc.Encode(request{Command: args, RequestID: id})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("mpv %v: %w", args[0], err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("mpv %v: %w", args[0], r.err)
		}
		return r.data, nil
	case <-c.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		c.dispatch(msg)
	}

	c.mu.Lock()
	c.readErr = scanner.Err()
	if c.readErr == nil {
		c.readErr = ErrClosed
	}
	c.mu.Unlock()
	close(c.closed)
}

func (c *Client) dispatch(msg message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.Event != "" {
		if msg.Event == "playback-restart" && c.seeked != nil {
			close(c.seeked)
			c.seeked = nil
		}
		return
	}

	ch, ok := c.pending[msg.RequestID]
	if !ok {
		return
	}
	var err error
	if msg.Error != "" && msg.Error != "success" {
		err = errors.New(msg.Error)
	}
	ch <- reply{data: msg.Data, err: err}
}
