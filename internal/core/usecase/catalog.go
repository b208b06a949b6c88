package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/core/ports"
)

type CatalogUseCase struct {
	assets  ports.AssetRepository
	rows    ports.ExtractionRepository
	jobs    ports.JobRepository
	storage ports.ObjectStorage
}

func NewCatalogUseCase(
	assets ports.AssetRepository,
	rows ports.ExtractionRepository,
	jobs ports.JobRepository,
	storage ports.ObjectStorage,
) *CatalogUseCase {
	return &CatalogUseCase{
		assets:  assets,
		rows:    rows,
		jobs:    jobs,
		storage: storage,
	}
}

func (uc *CatalogUseCase) List(ctx context.Context, filter domain.KindFilter) ([]domain.MediaAsset, error) {
	assets, err := uc.assets.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	for i := range assets {
		assets[i].URL = uc.storage.PublicURL(assets[i].StorageKey)
	}
	return assets, nil
}

// Get returns the asset detail and counts the view.
func (uc *CatalogUseCase) Get(ctx context.Context, id string) (*domain.MediaAsset, error) {
	asset, err := uc.assets.View(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("view asset: %w", err)
	}
	asset.URL = uc.storage.PublicURL(asset.StorageKey)
	return asset, nil
}

// Captions returns whatever caption rows exist. An empty slice means
// extraction has not produced anything yet.
func (uc *CatalogUseCase) Captions(ctx context.Context, id string) ([]domain.CaptionSegment, error) {
	if _, err := uc.assets.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("fetch asset by id: %w", err)
	}
	captions, err := uc.rows.ListCaptions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list captions: %w", err)
	}
	if captions == nil {
		captions = []domain.CaptionSegment{}
	}
	return captions, nil
}

func (uc *CatalogUseCase) Status(ctx context.Context, id string) (*domain.AssetStatus, error) {
	asset, err := uc.assets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch asset by id: %w", err)
	}

	status := &domain.AssetStatus{AssetID: asset.ID, Kind: asset.Kind}
	switch asset.Kind {
	case domain.KindVideo:
		captions, err := uc.rows.ListCaptions(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list captions: %w", err)
		}
		status.Ready = len(captions) > 0
	case domain.KindDocument:
		text, err := uc.rows.GetText(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get extracted text: %w", err)
		}
		status.Ready = text != nil
	}

	job, err := uc.jobs.LatestJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("latest extraction job: %w", err)
	}
	status.Job = job
	return status, nil
}
