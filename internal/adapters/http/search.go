package httpadapter

import (
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/media-search/internal/core/domain"
)

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	start := time.Now()

	hits, err := rt.svc.Search.Search(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	if rt.metrics != nil && strings.TrimSpace(query) != "" {
		rt.metrics.RecordSearch(serviceName, len(hits), time.Since(start))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}
