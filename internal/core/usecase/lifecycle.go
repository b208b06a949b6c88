package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/core/ports"
)

const maxBulkDeleteIDs = 1000

type LifecycleUseCase struct {
	assets ports.AssetRepository
	logger *slog.Logger
}

func NewLifecycleUseCase(assets ports.AssetRepository, logger *slog.Logger) *LifecycleUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleUseCase{assets: assets, logger: logger}
}

// BulkDelete soft-deletes the given assets in one statement and returns how
// many rows actually changed. Extraction rows are left in place.
func (uc *LifecycleUseCase) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "bulk delete", errors.New("ids must not be empty"))
	}
	if len(unique) > maxBulkDeleteIDs {
		return 0, domain.WrapError(domain.ErrInvalidInput, "bulk delete",
			fmt.Errorf("at most %d ids per request", maxBulkDeleteIDs))
	}

	count, err := uc.assets.SoftDeleteMany(ctx, unique)
	if err != nil {
		return 0, fmt.Errorf("soft delete assets: %w", err)
	}
	uc.logger.Info("assets_soft_deleted", "requested", len(unique), "changed", count)
	return count, nil
}
