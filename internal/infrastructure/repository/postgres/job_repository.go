package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/media-search/internal/core/domain"
)

const jobColumns = `id, asset_id, mode, status, exit_code, error_message, created_at, started_at, finished_at`

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) CreateJob(ctx context.Context, job *domain.ExtractionJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extraction_jobs (id, asset_id, mode, status, error_message, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, job.ID, job.AssetID, string(job.Mode), string(job.Status), job.Error, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert extraction job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM extraction_jobs
WHERE id = $1
`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("extraction job not found: id=%s", id)
		}
		return nil, fmt.Errorf("scan extraction job: %w", err)
	}
	return &job, nil
}

// LatestJob returns nil when the asset was never sent to the extractor.
func (r *JobRepository) LatestJob(ctx context.Context, assetID string) (*domain.ExtractionJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM extraction_jobs
WHERE asset_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1
`, assetID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan extraction job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) MarkJobRunning(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = $2, started_at = $3
WHERE id = $1 AND status IN ('queued', 'running')
`, id, string(domain.JobRunning), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark extraction job running: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark running rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("extraction job not active: id=%s", id)
	}
	return nil
}

func (r *JobRepository) FinishJob(ctx context.Context, id string, status domain.JobStatus, exitCode *int, errMessage string) error {
	var code sql.NullInt64
	if exitCode != nil {
		code = sql.NullInt64{Int64: int64(*exitCode), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = $2, exit_code = $3, error_message = $4, finished_at = $5
WHERE id = $1
`, id, string(status), code, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finish extraction job: %w", err)
	}
	return nil
}

func scanJob(row rowScanner) (domain.ExtractionJob, error) {
	var job domain.ExtractionJob
	var mode, status string
	var exitCode sql.NullInt64
	var startedAt, finishedAt sql.NullTime
	err := row.Scan(
		&job.ID,
		&job.AssetID,
		&mode,
		&status,
		&exitCode,
		&job.Error,
		&job.CreatedAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return domain.ExtractionJob{}, err
	}
	job.Mode = domain.ExtractionMode(mode)
	job.Status = domain.JobStatus(status)
	if exitCode.Valid {
		code := int(exitCode.Int64)
		job.ExitCode = &code
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return job, nil
}
