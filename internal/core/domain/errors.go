package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrAssetNotFound   = errors.New("asset not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrStorage         = errors.New("storage failure")
	ErrWorkerFailure   = errors.New("extraction worker failure")
	ErrSchemaMismatch  = errors.New("schema mismatch")
	ErrTemporary       = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// WorkerFailure is returned by a synchronous extraction run that exited non-zero.
type WorkerFailure struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *WorkerFailure) Error() string {
	msg := TailText(e.Stderr, 200)
	if msg == "" {
		return fmt.Sprintf("extractor exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("extractor exited with code %d: %s", e.ExitCode, msg)
}

func (e *WorkerFailure) Unwrap() error {
	return ErrWorkerFailure
}

// TailText returns at most the last n bytes of the trimmed s, starting on a
// rune boundary. Invalid sequences are replaced so the result is valid UTF-8.
func TailText(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		cut := len(s) - n
		for cut < len(s) && !utf8.RuneStart(s[cut]) {
			cut++
		}
		s = s[cut:]
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}
