package ports

import (
	"context"
	"io"

	"github.com/kirillkom/media-search/internal/core/domain"
)

// AssetRepository persists and reads asset metadata. Every read excludes
// soft-deleted rows.
type AssetRepository interface {
	Create(ctx context.Context, asset *domain.MediaAsset) error
	GetByID(ctx context.Context, id string) (*domain.MediaAsset, error)
	View(ctx context.Context, id string) (*domain.MediaAsset, error)
	List(ctx context.Context, filter domain.KindFilter) ([]domain.MediaAsset, error)
	SoftDeleteMany(ctx context.Context, ids []string) (int64, error)
}

// ExtractionRepository reads and writes extraction output rows.
type ExtractionRepository interface {
	ListCaptions(ctx context.Context, assetID string) ([]domain.CaptionSegment, error)
	ReplaceCaptions(ctx context.Context, assetID string, segments []domain.CaptionSegment) error
	GetText(ctx context.Context, assetID string) (*domain.ExtractedText, error)
	UpsertText(ctx context.Context, text domain.ExtractedText) error
}

// JobRepository tracks extraction worker invocations.
type JobRepository interface {
	CreateJob(ctx context.Context, job *domain.ExtractionJob) error
	GetJob(ctx context.Context, id string) (*domain.ExtractionJob, error)
	LatestJob(ctx context.Context, assetID string) (*domain.ExtractionJob, error)
	MarkJobRunning(ctx context.Context, id string) error
	FinishJob(ctx context.Context, id string, status domain.JobStatus, exitCode *int, errMessage string) error
}

// SearchRepository runs the per-source matches of the search engine.
type SearchRepository interface {
	SearchCaptions(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
	SearchDocuments(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
}

// ObjectStorage stores uploaded blobs.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	PublicURL(key string) string
}

// ExtractionDispatcher hands a queued job to whatever runs the worker. It must
// not wait for the worker to finish.
type ExtractionDispatcher interface {
	Dispatch(ctx context.Context, job domain.ExtractionJob) error
}

// ExtractionRunner starts the extraction worker process and waits for it.
type ExtractionRunner interface {
	Run(ctx context.Context, assetID, sourceLocator string) (domain.WorkerResult, error)
}

// CaptionExtractor turns a local video file into caption segments.
type CaptionExtractor interface {
	Extract(ctx context.Context, path string) ([]domain.CaptionSegment, error)
}

// TextExtractor turns a document payload into plain text.
type TextExtractor interface {
	Extract(name string, data []byte) (string, error)
}

// LocalPather is implemented by object stores that keep blobs on local disk.
type LocalPather interface {
	Path(key string) (string, error)
}
