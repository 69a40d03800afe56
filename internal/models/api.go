package models

import "time"

// AnalyzeRequest is the submission intake payload. SessionID is optional: a
// client that reloads mid-evaluation re-submits with the session ID it already
// holds and gets the existing job back instead of a duplicate.
type AnalyzeRequest struct {
	SessionID       string          `json:"session_id,omitempty"`
	Theme           string          `json:"theme"`
	Prompt          string          `json:"prompt"`
	Transcript      string          `json:"transcript"`
	DurationSeconds float64         `json:"duration_seconds"`
	WordCount       int             `json:"word_count,omitempty"`
	Framing         FramingEvidence `json:"framing"`
}

type AnalyzeResponse struct {
	SessionID string `json:"session_id"`
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
}

type StatusResponse struct {
	SessionID    string          `json:"session_id"`
	JobID        string          `json:"job_id"`
	Status       string          `json:"status"`
	Progress     int             `json:"progress"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Result       *AnalysisResult `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorDetails *ErrorDetails   `json:"error_details,omitempty"`
}
