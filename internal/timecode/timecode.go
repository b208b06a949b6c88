// Package timecode converts the time representations found in caption files
// and transcriber output into seconds.
package timecode

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MillisecondThreshold is the point above which a bare number is read as
// milliseconds rather than seconds.
const MillisecondThreshold = 10000

var (
	hmsPattern = regexp.MustCompile(`^(\d{1,3}):([0-5]?\d):([0-5]?\d)(?:[.,](\d{1,9}))?$`)
	msPattern  = regexp.MustCompile(`^(\d{1,4}):([0-5]?\d)(?:[.,](\d{1,9}))?$`)
)

// Normalize returns v in seconds. It accepts HH:MM:SS[.mmm] and MM:SS[.mmm]
// clock strings, decimal strings and Go numeric values. It never panics; ok is
// false when v cannot be read as a non-negative finite time.
func Normalize(v any) (sec float64, ok bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case string:
		return normalizeString(x)
	case json.Number:
		return normalizeString(x.String())
	case float64:
		return normalizeNumber(x)
	case float32:
		return normalizeNumber(float64(x))
	case int:
		return normalizeNumber(float64(x))
	case int32:
		return normalizeNumber(float64(x))
	case int64:
		return normalizeNumber(float64(x))
	case uint:
		return normalizeNumber(float64(x))
	case uint32:
		return normalizeNumber(float64(x))
	case uint64:
		return normalizeNumber(float64(x))
	default:
		return 0, false
	}
}

func normalizeString(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	if m := hmsPattern.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		se, _ := strconv.Atoi(m[3])
		return float64(h*3600+mi*60+se) + fraction(m[4]), true
	}
	if m := msPattern.FindStringSubmatch(s); m != nil {
		mi, _ := strconv.Atoi(m[1])
		se, _ := strconv.Atoi(m[2])
		return float64(mi*60+se) + fraction(m[3]), true
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return normalizeNumber(n)
}

func normalizeNumber(n float64) (float64, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0, false
	}
	if n > MillisecondThreshold {
		return n / 1000, true
	}
	return n, true
}

// fraction reads the digits after the separator as a decimal fraction, so ".5"
// is half a second and ".050" fifty milliseconds.
func fraction(digits string) float64 {
	if digits == "" {
		return 0
	}
	f, err := strconv.ParseFloat("0."+digits, 64)
	if err != nil {
		return 0
	}
	return f
}

// Format renders seconds as MM:SS, or H:MM:SS from one hour on.
func Format(sec float64) string {
	if math.IsNaN(sec) || sec < 0 {
		sec = 0
	}
	total := int64(math.Floor(sec))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
