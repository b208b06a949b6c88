package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/media-search/internal/core/domain"
)

const (
	maxCapturedOutput = 64 << 10
	// outputWaitDelay bounds how long Wait keeps reading pipes held open by
	// grandchildren (ffmpeg) after the extractor itself was killed.
	outputWaitDelay = 2 * time.Second
)

// Config says how to start the extractor. With an Interpreter the command is
// `Interpreter Path assetId sourceLocator`, otherwise Path is executed directly.
type Config struct {
	Interpreter string
	Path        string
	Timeout     time.Duration
	Env         []string
}

func (c Config) command() (string, []string, error) {
	path := strings.TrimSpace(c.Path)
	if path == "" {
		return "", nil, errors.New("extractor path is not configured")
	}
	if interp := strings.TrimSpace(c.Interpreter); interp != "" {
		return interp, []string{path}, nil
	}
	return path, nil, nil
}

// Runner starts one extractor process per call and waits for it to exit.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run returns the exit code and captured output of the extractor. A non-zero
// exit is reported in the result, not as an error; the error is reserved for
// processes that could not be started or were killed by the timeout.
func (r *Runner) Run(ctx context.Context, assetID, sourceLocator string) (domain.WorkerResult, error) {
	name, args, err := r.cfg.command()
	if err != nil {
		return domain.WorkerResult{}, err
	}
	args = append(args, assetID, sourceLocator)

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = outputWaitDelay
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.cfg.Env...)
	}
	stdout := &tailBuffer{limit: maxCapturedOutput}
	stderr := &tailBuffer{limit: maxCapturedOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	result := domain.WorkerResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	r.logger.Debug("extractor_exited",
		"asset_id", assetID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", runErr,
	)

	if runErr == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("extractor for asset %s: %w", assetID, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	result.ExitCode = -1
	return result, fmt.Errorf("start extractor: %w", runErr)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return n, nil
}

// String drops a rune cut in half by the limit.
func (b *tailBuffer) String() string {
	out := b.buf.Bytes()
	for len(out) > 0 && !utf8.RuneStart(out[0]) {
		out = out[1:]
	}
	return strings.ToValidUTF8(string(out), "\uFFFD")
}
