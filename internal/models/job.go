package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobComplete   JobStatus = "complete"
	JobError      JobStatus = "error"
)

// Terminal reports whether s is a final job state.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobError
}

// ErrorDetails preserves the raw diagnostics of a failed evaluation for
// support tooling. It accompanies the user-safe error message and must never
// be surfaced as the primary score.
type ErrorDetails struct {
	RawModelOutput string `json:"raw_model_output,omitempty"`
	ParseFailCount int    `json:"parse_fail_count,omitempty"`
}

// AnalysisJob is one unit of asynchronous evaluation work. Exactly one job
// exists per session; status transitions are monotonic, Result is set iff the
// job completed and Error is set iff it failed.
type AnalysisJob struct {
	ID           uuid.UUID       `json:"id"`
	SessionID    uuid.UUID       `json:"session_id"`
	Status       JobStatus       `json:"status"`
	Progress     int             `json:"progress"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Result       *AnalysisResult `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorDetails *ErrorDetails   `json:"error_details,omitempty"`
}
