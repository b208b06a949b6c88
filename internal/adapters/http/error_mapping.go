package httpadapter

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/kirillkom/media-search/internal/core/domain"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrAssetNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides storage and database detail behind 5xx responses.
func publicMessage(status int, err error) string {
	switch {
	case status < http.StatusInternalServerError:
		return err.Error()
	case status == http.StatusServiceUnavailable:
		return "temporarily unavailable, retry later"
	case domain.IsKind(err, domain.ErrStorage):
		return "object storage error"
	case domain.IsKind(err, domain.ErrWorkerFailure):
		return err.Error()
	default:
		return "internal error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	requestID := requestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: publicMessage(status, err), RequestID: requestID})
}
