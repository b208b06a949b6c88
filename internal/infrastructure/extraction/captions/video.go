package captions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kirillkom/media-search/internal/core/domain"
)

const inputPlaceholder = "{input}"

// VideoExtractor produces captions for a video file. A configured transcriber
// command wins; otherwise ffmpeg dumps the first embedded subtitle stream.
type VideoExtractor struct {
	// TranscribeCommand is split on whitespace; "{input}" is replaced with the
	// file path, or the path is appended when the placeholder is absent. The
	// command must print SRT, WebVTT or JSON segments on stdout.
	TranscribeCommand string
	FFmpegPath        string
}

func (e VideoExtractor) command(inputPath string) (string, []string, error) {
	if cmd := strings.Fields(e.TranscribeCommand); len(cmd) > 0 {
		args := make([]string, 0, len(cmd))
		replaced := false
		for _, arg := range cmd[1:] {
			if strings.Contains(arg, inputPlaceholder) {
				arg = strings.ReplaceAll(arg, inputPlaceholder, inputPath)
				replaced = true
			}
			args = append(args, arg)
		}
		if !replaced {
			args = append(args, inputPath)
		}
		return cmd[0], args, nil
	}

	ffmpeg := strings.TrimSpace(e.FFmpegPath)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return ffmpeg, []string{
		"-nostdin",
		"-v", "error",
		"-i", inputPath,
		"-map", "0:s:0",
		"-f", "srt",
		"-",
	}, nil
}

func (e VideoExtractor) Extract(ctx context.Context, inputPath string) ([]domain.CaptionSegment, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, errors.New("input path is required")
	}
	name, args, err := e.command(inputPath)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := domain.TailText(stderr.String(), 512)
		return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
	}

	segments, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parse %s output: %w", name, err)
	}
	return segments, nil
}
