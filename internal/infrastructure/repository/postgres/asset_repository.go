package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/media-search/internal/core/domain"
)

const assetColumns = `id, display_name, storage_key, kind, category, subcategory, metadata, uploaded_at, is_deleted, view_count`

type AssetRepository struct {
	db *sql.DB
}

func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Create(ctx context.Context, asset *domain.MediaAsset) error {
	metadata := []byte(asset.Metadata)
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO media_assets (`+assetColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,0)
`,
		asset.ID, asset.DisplayName, asset.StorageKey, string(asset.Kind), asset.Category,
		nullString(asset.Subcategory), metadata, asset.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert media asset: %w", err)
	}
	return nil
}

func (r *AssetRepository) GetByID(ctx context.Context, id string) (*domain.MediaAsset, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+assetColumns+`
FROM media_assets
WHERE id = $1 AND is_deleted = false
`, id)
	return scanAssetRow(row, id)
}

// View returns the asset and increments its view counter in one statement.
func (r *AssetRepository) View(ctx context.Context, id string) (*domain.MediaAsset, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE media_assets
SET view_count = view_count + 1
WHERE id = $1 AND is_deleted = false
RETURNING `+assetColumns, id)
	return scanAssetRow(row, id)
}

func (r *AssetRepository) List(ctx context.Context, filter domain.KindFilter) ([]domain.MediaAsset, error) {
	query := `
SELECT ` + assetColumns + `
FROM media_assets
WHERE is_deleted = false
`
	args := make([]any, 0, 1)
	if filter != "" && filter != domain.FilterAll {
		query += "AND kind = $1\n"
		args = append(args, string(filter))
	}
	query += "ORDER BY uploaded_at DESC, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}
	defer rows.Close()

	out := make([]domain.MediaAsset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media asset: %w", err)
		}
		out = append(out, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media assets: %w", err)
	}
	return out, nil
}

// SoftDeleteMany flags every listed asset in a single statement and reports
// how many rows actually changed.
func (r *AssetRepository) SoftDeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE media_assets
SET is_deleted = true
WHERE is_deleted = false AND id IN (`+strings.Join(placeholders, ",")+`)
`, args...)
	if err != nil {
		return 0, fmt.Errorf("soft delete media assets: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("soft delete rows affected: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssetRow(row rowScanner, id string) (*domain.MediaAsset, error) {
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrAssetNotFound, "get media asset", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan media asset: %w", err)
	}
	return &asset, nil
}

func scanAsset(row rowScanner) (domain.MediaAsset, error) {
	var asset domain.MediaAsset
	var kind string
	var subcategory sql.NullString
	var metadata []byte
	err := row.Scan(
		&asset.ID,
		&asset.DisplayName,
		&asset.StorageKey,
		&kind,
		&asset.Category,
		&subcategory,
		&metadata,
		&asset.UploadedAt,
		&asset.IsDeleted,
		&asset.ViewCount,
	)
	if err != nil {
		return domain.MediaAsset{}, err
	}
	asset.Kind = domain.AssetKind(kind)
	asset.Subcategory = subcategory.String
	if len(metadata) > 0 && string(metadata) != "{}" {
		asset.Metadata = json.RawMessage(metadata)
	}
	return asset, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
