package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/media-search/internal/core/domain"
)

// excerptRadius bounds how much document text leaves the database per hit.
// The exact snippet window is cut by the caller.
const excerptRadius = 200

type SearchRepository struct {
	db     *sql.DB
	logger *slog.Logger

	mu   sync.RWMutex
	caps Capabilities
}

func NewSearchRepository(db *sql.DB, caps Capabilities, logger *slog.Logger) *SearchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchRepository{db: db, caps: caps, logger: logger}
}

func (r *SearchRepository) Capabilities() Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps
}

func (r *SearchRepository) SearchCaptions(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	caps := r.Capabilities()
	hits, err := r.searchCaptions(ctx, caps, query, limit)
	if err != nil && sqlState(err) == sqlStateUndefinedColumn && caps.CaptionStartSec {
		r.disable("caption_start_sec", err, func(c *Capabilities) { c.CaptionStartSec = false })
		hits, err = r.searchCaptions(ctx, r.Capabilities(), query, limit)
	}
	if err != nil {
		return nil, wrapSearchError("search captions", err)
	}
	return hits, nil
}

func (r *SearchRepository) SearchDocuments(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	caps := r.Capabilities()
	hits, err := r.searchDocuments(ctx, caps, query, limit)
	if err != nil && sqlState(err) == sqlStateUndefinedTable && caps.ExtractedTexts {
		r.disable("extracted_texts", err, func(c *Capabilities) { c.ExtractedTexts = false })
		hits, err = r.searchDocuments(ctx, r.Capabilities(), query, limit)
	}
	if err != nil {
		return nil, wrapSearchError("search documents", err)
	}
	return hits, nil
}

func (r *SearchRepository) searchCaptions(ctx context.Context, caps Capabilities, query string, limit int) ([]domain.SearchHit, error) {
	timestamp := "c.start_sec"
	order := "a.uploaded_at DESC, a.id, c.start_sec"
	if !caps.CaptionStartSec {
		timestamp = "NULL::double precision"
		order = "a.uploaded_at DESC, a.id, c.ordinal"
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, a.display_name, a.kind, a.storage_key, a.uploaded_at, `+timestamp+`, c.text
FROM media_assets a
JOIN caption_segments c ON c.media_asset_id = a.id
WHERE a.is_deleted = false
	AND a.kind = 'video'
	AND strpos(lower(c.text), lower($1)) > 0
ORDER BY `+order+`
LIMIT $2
`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SearchHit, 0)
	for rows.Next() {
		var hit domain.SearchHit
		var kind string
		var startSec sql.NullFloat64
		if err := rows.Scan(&hit.MediaAssetID, &hit.Name, &kind, &hit.StorageKey, &hit.UploadedAt, &startSec, &hit.Excerpt); err != nil {
			return nil, fmt.Errorf("scan caption hit: %w", err)
		}
		hit.Kind = domain.AssetKind(kind)
		if startSec.Valid {
			ts := startSec.Float64
			hit.SourceTimestamp = &ts
		}
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SearchRepository) searchDocuments(ctx context.Context, caps Capabilities, query string, limit int) ([]domain.SearchHit, error) {
	var statement string
	if caps.ExtractedTexts {
		statement = fmt.Sprintf(`
SELECT a.id, a.display_name, a.kind, a.storage_key, a.uploaded_at,
	COALESCE(substring(t.text from greatest(1, strpos(lower(t.text), lower($1)) - %d) for %d + length($1)), '')
FROM media_assets a
LEFT JOIN extracted_texts t ON t.media_asset_id = a.id
WHERE a.is_deleted = false
	AND a.kind = 'document'
	AND (strpos(lower(COALESCE(t.text, '')), lower($1)) > 0 OR strpos(lower(a.display_name), lower($1)) > 0)
ORDER BY a.uploaded_at DESC, a.id
LIMIT $2
`, excerptRadius, 2*excerptRadius)
	} else {
		statement = `
SELECT a.id, a.display_name, a.kind, a.storage_key, a.uploaded_at, ''
FROM media_assets a
WHERE a.is_deleted = false
	AND a.kind = 'document'
	AND strpos(lower(a.display_name), lower($1)) > 0
ORDER BY a.uploaded_at DESC, a.id
LIMIT $2
`
	}

	rows, err := r.db.QueryContext(ctx, statement, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SearchHit, 0)
	for rows.Next() {
		var hit domain.SearchHit
		var kind string
		var uploadedAt time.Time
		if err := rows.Scan(&hit.MediaAssetID, &hit.Name, &kind, &hit.StorageKey, &uploadedAt, &hit.Excerpt); err != nil {
			return nil, fmt.Errorf("scan document hit: %w", err)
		}
		hit.Kind = domain.AssetKind(kind)
		hit.UploadedAt = uploadedAt
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SearchRepository) disable(capability string, cause error, apply func(*Capabilities)) {
	r.mu.Lock()
	apply(&r.caps)
	r.mu.Unlock()
	r.logger.Warn("search_capability_disabled", "capability", capability, "error", cause)
}

func wrapSearchError(operation string, err error) error {
	switch sqlState(err) {
	case sqlStateUndefinedTable, sqlStateUndefinedColumn:
		return domain.WrapError(domain.ErrSchemaMismatch, operation, err)
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
