package domain

import "time"

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

type ExtractionMode string

const (
	ModeAsync ExtractionMode = "async"
	ModeSync  ExtractionMode = "sync"
)

// ExtractionJob records one invocation of the extraction worker for an asset.
type ExtractionJob struct {
	ID         string         `json:"id"`
	AssetID    string         `json:"assetId"`
	Mode       ExtractionMode `json:"mode"`
	Status     JobStatus      `json:"status"`
	ExitCode   *int           `json:"exitCode,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

// Active reports whether the job may still produce rows.
func (j ExtractionJob) Active() bool {
	return j.Status == JobQueued || j.Status == JobRunning
}

// WorkerResult is what a finished extractor process left behind.
type WorkerResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExtractionOutcome is returned by a synchronous extraction that succeeded.
type ExtractionOutcome struct {
	Job      ExtractionJob    `json:"job"`
	Captions []CaptionSegment `json:"captions,omitempty"`
	Text     *ExtractedText   `json:"text,omitempty"`
}

// AssetStatus summarizes extraction progress for one asset.
type AssetStatus struct {
	AssetID string         `json:"assetId"`
	Kind    AssetKind      `json:"kind"`
	Ready   bool           `json:"ready"`
	Job     *ExtractionJob `json:"job,omitempty"`
}
