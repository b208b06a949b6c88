package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/core/ports"
)

// maxDocumentBytes caps how much of a document the worker loads into memory.
const maxDocumentBytes = 256 << 20

// WorkerUseCase is what runs inside the extractor process: it reads one
// asset's blob and writes its caption or text rows.
type WorkerUseCase struct {
	assets   ports.AssetRepository
	rows     ports.ExtractionRepository
	storage  ports.ObjectStorage
	captions ports.CaptionExtractor
	text     ports.TextExtractor
	tempDir  string
	logger   *slog.Logger
}

func NewWorkerUseCase(
	assets ports.AssetRepository,
	rows ports.ExtractionRepository,
	storage ports.ObjectStorage,
	captions ports.CaptionExtractor,
	text ports.TextExtractor,
	tempDir string,
	logger *slog.Logger,
) *WorkerUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerUseCase{
		assets:   assets,
		rows:     rows,
		storage:  storage,
		captions: captions,
		text:     text,
		tempDir:  tempDir,
		logger:   logger,
	}
}

func (uc *WorkerUseCase) Extract(ctx context.Context, assetID, sourceLocator string) error {
	asset, err := uc.assets.GetByID(ctx, assetID)
	if err != nil {
		return fmt.Errorf("fetch asset by id: %w", err)
	}
	key := strings.TrimSpace(sourceLocator)
	if key == "" {
		key = asset.StorageKey
	}

	switch asset.Kind {
	case domain.KindVideo:
		return uc.extractCaptions(ctx, asset, key)
	case domain.KindDocument:
		return uc.extractText(ctx, asset, key)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "extract",
			errors.New("asset kind "+string(asset.Kind)+" has no extractor"))
	}
}

func (uc *WorkerUseCase) extractCaptions(ctx context.Context, asset *domain.MediaAsset, key string) error {
	path, cleanup, err := uc.localCopy(ctx, key)
	if err != nil {
		return err
	}
	defer cleanup()

	segments, err := uc.captions.Extract(ctx, path)
	if err != nil {
		return fmt.Errorf("extract captions: %w", err)
	}
	for i := range segments {
		segments[i].MediaAssetID = asset.ID
		segments[i].Ordinal = i
	}
	if err := uc.rows.ReplaceCaptions(ctx, asset.ID, segments); err != nil {
		return fmt.Errorf("store captions: %w", err)
	}
	uc.logger.Info("captions_stored", "asset_id", asset.ID, "segments", len(segments))
	return nil
}

func (uc *WorkerUseCase) extractText(ctx context.Context, asset *domain.MediaAsset, key string) error {
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "open source document", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxDocumentBytes+1))
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "read source document", err)
	}
	if len(data) > maxDocumentBytes {
		return domain.WrapError(domain.ErrPayloadTooLarge, "read source document",
			fmt.Errorf("document exceeds %d bytes", maxDocumentBytes))
	}

	text, err := uc.text.Extract(asset.DisplayName, data)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if err := uc.rows.UpsertText(ctx, domain.ExtractedText{MediaAssetID: asset.ID, Text: text}); err != nil {
		return fmt.Errorf("store extracted text: %w", err)
	}
	uc.logger.Info("text_stored", "asset_id", asset.ID, "chars", len([]rune(text)))
	return nil
}

// localCopy returns a filesystem path for key. Stores that are not on local
// disk are copied into a temporary file that cleanup removes.
func (uc *WorkerUseCase) localCopy(ctx context.Context, key string) (string, func(), error) {
	noop := func() {}
	if pather, ok := uc.storage.(ports.LocalPather); ok {
		path, err := pather.Path(key)
		if err != nil {
			return "", noop, domain.WrapError(domain.ErrStorage, "resolve blob path", err)
		}
		return path, noop, nil
	}

	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return "", noop, domain.WrapError(domain.ErrStorage, "open source video", err)
	}
	defer rc.Close()

	f, err := os.CreateTemp(uc.tempDir, "extract-*"+filepath.Ext(key))
	if err != nil {
		return "", noop, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		cleanup()
		return "", noop, domain.WrapError(domain.ErrStorage, "copy source video", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}
