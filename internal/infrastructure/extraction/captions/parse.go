// Package captions turns subtitle and transcript output into caption segments.
package captions

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/timecode"
)

var markupTag = regexp.MustCompile(`<[^>]*>|\{\\[^}]*\}`)

// Parse detects the format of raw (WebVTT, JSON segments or SRT) and parses it.
func Parse(raw []byte) ([]domain.CaptionSegment, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")))
	switch {
	case len(trimmed) == 0:
		return []domain.CaptionSegment{}, nil
	case bytes.HasPrefix(trimmed, []byte("WEBVTT")):
		return parseCues(trimmed, true)
	case trimmed[0] == '[' || trimmed[0] == '{':
		return ParseJSON(trimmed)
	default:
		return parseCues(trimmed, false)
	}
}

func ParseSRT(raw []byte) ([]domain.CaptionSegment, error) {
	return parseCues(raw, false)
}

func ParseVTT(raw []byte) ([]domain.CaptionSegment, error) {
	return parseCues(raw, true)
}

// parseCues reads blank-line separated cue blocks. The timing line is the
// first one containing "-->"; everything after it is cue text.
func parseCues(raw []byte, vtt bool) ([]domain.CaptionSegment, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	out := make([]domain.CaptionSegment, 0)
	var block []string
	flush := func() error {
		defer func() { block = block[:0] }()
		seg, ok, err := parseBlock(block, vtt)
		if err != nil {
			return err
		}
		if ok {
			seg.Ordinal = len(out)
			out = append(out, seg)
		}
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cues: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseBlock(lines []string, vtt bool) (domain.CaptionSegment, bool, error) {
	timing := -1
	for i, line := range lines {
		if strings.Contains(line, "-->") {
			timing = i
			break
		}
	}
	if timing < 0 {
		// Sequence numbers alone, the WEBVTT header, NOTE and STYLE blocks.
		return domain.CaptionSegment{}, false, nil
	}

	parts := strings.SplitN(lines[timing], "-->", 2)
	startRaw := strings.TrimSpace(parts[0])
	endRaw := strings.TrimSpace(parts[1])
	if vtt {
		// Cue settings follow the end time: "00:01.000 --> 00:04.000 align:start".
		if fields := strings.Fields(endRaw); len(fields) > 0 {
			endRaw = fields[0]
		}
	}

	start, ok := timecode.Normalize(startRaw)
	if !ok {
		return domain.CaptionSegment{}, false, fmt.Errorf("invalid cue start %q", startRaw)
	}
	end, ok := timecode.Normalize(endRaw)
	if !ok {
		return domain.CaptionSegment{}, false, fmt.Errorf("invalid cue end %q", endRaw)
	}

	text := cleanText(strings.Join(lines[timing+1:], " "))
	if text == "" {
		return domain.CaptionSegment{}, false, nil
	}
	return newSegment(start, end, text), true, nil
}

type jsonSegment struct {
	Start any    `json:"start"`
	End   any    `json:"end"`
	Text  string `json:"text"`
}

// ParseJSON accepts a bare array of {start, end, text} objects or an object
// with a "segments" array, as speech-to-text tools print them. Times may be
// seconds, milliseconds or clock strings.
func ParseJSON(raw []byte) ([]domain.CaptionSegment, error) {
	var segments []jsonSegment
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Segments []jsonSegment `json:"segments"`
		}
		if err := decodeJSON(trimmed, &wrapper); err != nil {
			return nil, err
		}
		segments = wrapper.Segments
	} else if err := decodeJSON(trimmed, &segments); err != nil {
		return nil, err
	}

	out := make([]domain.CaptionSegment, 0, len(segments))
	for i, s := range segments {
		start, ok := timecode.Normalize(s.Start)
		if !ok {
			return nil, fmt.Errorf("segment %d: invalid start %v", i, s.Start)
		}
		end, ok := timecode.Normalize(s.End)
		if !ok {
			end = start
		}
		text := cleanText(s.Text)
		if text == "" {
			continue
		}
		seg := newSegment(start, end, text)
		seg.Ordinal = len(out)
		out = append(out, seg)
	}
	return out, nil
}

func decodeJSON(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode json segments: %w", err)
	}
	return nil
}

func newSegment(start, end float64, text string) domain.CaptionSegment {
	if end < start {
		end = start
	}
	return domain.CaptionSegment{StartSec: start, EndSec: end, Text: text}
}

func cleanText(s string) string {
	s = markupTag.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
