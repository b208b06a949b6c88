package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/core/ports"
)

type extractionTrigger interface {
	Trigger(ctx context.Context, asset *domain.MediaAsset) (*domain.ExtractionJob, error)
}

type IngestAssetUseCase struct {
	assets    ports.AssetRepository
	storage   ports.ObjectStorage
	extractor extractionTrigger
	taxonomy  domain.Taxonomy
	maxBytes  int64
	logger    *slog.Logger
}

func NewIngestAssetUseCase(
	assets ports.AssetRepository,
	storage ports.ObjectStorage,
	extractor extractionTrigger,
	taxonomy domain.Taxonomy,
	maxBytes int64,
	logger *slog.Logger,
) *IngestAssetUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestAssetUseCase{
		assets:    assets,
		storage:   storage,
		extractor: extractor,
		taxonomy:  taxonomy,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

func (uc *IngestAssetUseCase) Upload(ctx context.Context, req ports.UploadRequest) (*domain.MediaAsset, error) {
	if req.Body == nil || strings.TrimSpace(req.Filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("file is required"))
	}
	if req.Size == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("file is empty"))
	}
	if uc.maxBytes > 0 && req.Size > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrPayloadTooLarge, "upload",
			fmt.Errorf("file size %d exceeds limit %d", req.Size, uc.maxBytes))
	}

	category, subcategory, err := uc.taxonomy.Resolve(req.Category, req.Subcategory)
	if err != nil {
		return nil, err
	}
	metadata, err := normalizeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(req.Filename))

	if err := uc.storage.Save(ctx, storageKey, req.Body); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "save to object storage", err)
	}

	asset := &domain.MediaAsset{
		ID:          id,
		DisplayName: filepath.Base(req.Filename),
		StorageKey:  storageKey,
		Kind:        domain.DeriveKind(req.Filename, req.ContentType),
		Category:    category,
		Subcategory: subcategory,
		Metadata:    metadata,
		UploadedAt:  time.Now().UTC(),
	}
	if err := uc.assets.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("create asset metadata: %w", err)
	}
	asset.URL = uc.storage.PublicURL(storageKey)

	if asset.Kind.Extractable() && uc.extractor != nil {
		if _, err := uc.extractor.Trigger(ctx, asset); err != nil {
			uc.logger.Warn("extraction_trigger_failed", "asset_id", asset.ID, "kind", asset.Kind, "error", err)
		}
	}

	return asset, nil
}

func normalizeMetadata(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse metadata", errors.New("metadata must be a JSON object"))
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return out, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "upload.bin"
	}
	return base
}
