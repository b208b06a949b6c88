package ports

import (
	"context"
	"encoding/json"
	"io"

	"github.com/kirillkom/media-search/internal/core/domain"
)

// UploadRequest is what the ingestion gateway receives from a transport.
type UploadRequest struct {
	Filename    string
	ContentType string
	Size        int64
	Category    string
	Subcategory string
	Metadata    json.RawMessage
	Body        io.Reader
}

// AssetIngestor is the inbound contract for upload orchestration.
type AssetIngestor interface {
	Upload(ctx context.Context, req UploadRequest) (*domain.MediaAsset, error)
}

// AssetCatalog is the read model for assets and their extraction output.
type AssetCatalog interface {
	List(ctx context.Context, filter domain.KindFilter) ([]domain.MediaAsset, error)
	Get(ctx context.Context, id string) (*domain.MediaAsset, error)
	Captions(ctx context.Context, id string) ([]domain.CaptionSegment, error)
	Status(ctx context.Context, id string) (*domain.AssetStatus, error)
}

// ExtractionService triggers the extraction worker.
type ExtractionService interface {
	Trigger(ctx context.Context, asset *domain.MediaAsset) (*domain.ExtractionJob, error)
	RunSync(ctx context.Context, assetID string) (*domain.ExtractionOutcome, error)
	RunJob(ctx context.Context, jobID string) error
}

// SearchService is the unified full-text search.
type SearchService interface {
	Search(ctx context.Context, query string) ([]domain.SearchHit, error)
}

// LifecycleService soft-deletes assets.
type LifecycleService interface {
	BulkDelete(ctx context.Context, ids []string) (int64, error)
}
