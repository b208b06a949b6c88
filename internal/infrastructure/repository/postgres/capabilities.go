package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlStateUndefinedTable  = "42P01"
	sqlStateUndefinedColumn = "42703"
)

// Capabilities describes the optional parts of the extraction schema found in
// the connected database. Older deployments lack one or both.
type Capabilities struct {
	ExtractedTexts  bool
	CaptionStartSec bool
	// UnicodeLower is false under a C/POSIX ctype, where lower() folds ASCII
	// only and accented queries match case-sensitively.
	UnicodeLower bool
}

func FullCapabilities() Capabilities {
	return Capabilities{ExtractedTexts: true, CaptionStartSec: true, UnicodeLower: true}
}

func ProbeCapabilities(ctx context.Context, db *sql.DB) (Capabilities, error) {
	row := db.QueryRowContext(ctx, `
SELECT
	EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = 'extracted_texts'
	),
	EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = 'caption_segments' AND column_name = 'start_sec'
	),
	lower('LIQUIDACIÓN') = 'liquidación'
`)
	var caps Capabilities
	if err := row.Scan(&caps.ExtractedTexts, &caps.CaptionStartSec, &caps.UnicodeLower); err != nil {
		return Capabilities{}, fmt.Errorf("probe schema capabilities: %w", err)
	}
	return caps, nil
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
