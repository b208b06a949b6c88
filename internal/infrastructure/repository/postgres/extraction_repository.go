package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/media-search/internal/core/domain"
)

// ExtractionRepository stores what the extraction worker produced. Reads join
// media_assets so that soft-deleted assets expose nothing.
type ExtractionRepository struct {
	db *sql.DB
}

func NewExtractionRepository(db *sql.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

func (r *ExtractionRepository) ListCaptions(ctx context.Context, assetID string) ([]domain.CaptionSegment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT c.media_asset_id, c.ordinal, c.start_sec, c.end_sec, c.text
FROM caption_segments c
JOIN media_assets a ON a.id = c.media_asset_id
WHERE c.media_asset_id = $1 AND a.is_deleted = false
ORDER BY c.ordinal, c.start_sec
`, assetID)
	if err != nil {
		return nil, fmt.Errorf("list caption segments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CaptionSegment, 0)
	for rows.Next() {
		var seg domain.CaptionSegment
		if err := rows.Scan(&seg.MediaAssetID, &seg.Ordinal, &seg.StartSec, &seg.EndSec, &seg.Text); err != nil {
			return nil, fmt.Errorf("scan caption segment: %w", err)
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caption segments: %w", err)
	}
	return out, nil
}

// ReplaceCaptions swaps the asset's caption rows in one transaction, so a
// repeated extraction leaves exactly one set behind.
func (r *ExtractionRepository) ReplaceCaptions(ctx context.Context, assetID string, segments []domain.CaptionSegment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin captions tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM caption_segments WHERE media_asset_id = $1`, assetID); err != nil {
		return fmt.Errorf("delete caption segments: %w", err)
	}
	for i, seg := range segments {
		_, err := tx.ExecContext(ctx, `
INSERT INTO caption_segments (media_asset_id, ordinal, start_sec, end_sec, text)
VALUES ($1,$2,$3,$4,$5)
`, assetID, i, seg.StartSec, seg.EndSec, seg.Text)
		if err != nil {
			return fmt.Errorf("insert caption segment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit captions tx: %w", err)
	}
	return nil
}

func (r *ExtractionRepository) GetText(ctx context.Context, assetID string) (*domain.ExtractedText, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT t.media_asset_id, t.text
FROM extracted_texts t
JOIN media_assets a ON a.id = t.media_asset_id
WHERE t.media_asset_id = $1 AND a.is_deleted = false
`, assetID)

	var text domain.ExtractedText
	if err := row.Scan(&text.MediaAssetID, &text.Text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan extracted text: %w", err)
	}
	return &text, nil
}

func (r *ExtractionRepository) UpsertText(ctx context.Context, text domain.ExtractedText) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extracted_texts (media_asset_id, text, updated_at)
VALUES ($1,$2,$3)
ON CONFLICT (media_asset_id) DO UPDATE SET text = EXCLUDED.text, updated_at = EXCLUDED.updated_at
`, text.MediaAssetID, text.Text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert extracted text: %w", err)
	}
	return nil
}
