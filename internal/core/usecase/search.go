package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/core/ports"
)

type publicURLer interface {
	PublicURL(key string) string
}

type SearchUseCase struct {
	repo    ports.SearchRepository
	storage publicURLer
	limit   int
	logger  *slog.Logger
}

func NewSearchUseCase(repo ports.SearchRepository, storage publicURLer, limit int, logger *slog.Logger) *SearchUseCase {
	if limit <= 0 {
		limit = domain.SearchLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		repo:    repo,
		storage: storage,
		limit:   limit,
		logger:  logger,
	}
}

// Search unions caption and document matches, newest upload first. A failing
// source is logged and contributes no hits.
func (uc *SearchUseCase) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchHit{}, nil
	}

	videoHits, err := uc.repo.SearchCaptions(ctx, query, uc.limit)
	if err != nil {
		uc.logger.Error("search_captions_failed", "error", err)
		videoHits = nil
	}
	docHits, err := uc.repo.SearchDocuments(ctx, query, uc.limit)
	if err != nil {
		uc.logger.Error("search_documents_failed", "error", err)
		docHits = nil
	}

	hits := make([]domain.SearchHit, 0, len(videoHits)+len(docHits))
	for _, h := range videoHits {
		h.MatchedFrom = domain.KindVideo
		hits = append(hits, uc.finalize(h, query))
	}
	for _, h := range docHits {
		h.MatchedFrom = domain.KindDocument
		hits = append(hits, uc.finalize(h, query))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if !a.UploadedAt.Equal(b.UploadedAt) {
			return a.UploadedAt.After(b.UploadedAt)
		}
		if a.MediaAssetID != b.MediaAssetID {
			return a.MediaAssetID < b.MediaAssetID
		}
		return timestampOf(a) < timestampOf(b)
	})

	if len(hits) > uc.limit {
		hits = hits[:uc.limit]
	}
	return hits, nil
}

func (uc *SearchUseCase) finalize(h domain.SearchHit, query string) domain.SearchHit {
	if h.Kind == "" {
		h.Kind = h.MatchedFrom
	}
	if snippet, ok := domain.Snippet(h.Excerpt, query); ok {
		h.Snippet = snippet
	} else if snippet, ok := domain.Snippet(h.Name, query); ok {
		h.Snippet = snippet
	} else {
		// The store and Go disagree on case folding for this text; keep the head.
		runes := []rune(h.Excerpt)
		if len(runes) > domain.SnippetLength {
			runes = runes[:domain.SnippetLength]
		}
		h.Snippet = string(runes)
	}
	if uc.storage != nil && h.StorageKey != "" {
		h.URL = uc.storage.PublicURL(h.StorageKey)
	}
	return h
}

func timestampOf(h domain.SearchHit) float64 {
	if h.SourceTimestamp == nil {
		return -1
	}
	return *h.SourceTimestamp
}
