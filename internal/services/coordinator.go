package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"speech-evaluator/internal/models"
	"speech-evaluator/internal/repositories"
)

var (
	ErrJobNotFound = errors.New("no analysis job for this session")
	ErrJobMismatch = errors.New("job id does not belong to this session")
)

// JobCoordinator owns the analysis job lifecycle. Start is idempotent per
// session (the guard against page reloads and duplicate submissions
// re-running the model call), Poll is strictly read-only, and Process is the
// single writer for a job once it has claimed it.
type JobCoordinator interface {
	// Start returns the job for sessionID, creating it when none exists.
	// created reports whether this call created the job; only then may the
	// caller enqueue it.
	Start(sessionID uuid.UUID) (job *models.AnalysisJob, created bool)

	// Poll returns a consistent snapshot of the job with its estimated
	// progress. It never mutates job state.
	Poll(sessionID, jobID uuid.UUID) (*models.AnalysisJob, error)

	// Process runs the evaluation pipeline for a queued job. Claiming is
	// compare-and-set, so a duplicate enqueue is a no-op.
	Process(ctx context.Context, sessionID uuid.UUID)

	// PendingJobs lists sessions whose jobs are still queued and older than
	// minAge, for the worker's requeue pass.
	PendingJobs(minAge time.Duration, limit int) []uuid.UUID
}

type jobCoordinator struct {
	sessions  repositories.SessionRepository
	evaluator EvaluatorService
	logger    *zap.Logger

	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.AnalysisJob
}

func NewJobCoordinator(
	sessions repositories.SessionRepository,
	evaluator EvaluatorService,
	logger *zap.Logger,
) JobCoordinator {
	return &jobCoordinator{
		sessions:  sessions,
		evaluator: evaluator,
		logger:    logger,
		jobs:      make(map[uuid.UUID]*models.AnalysisJob),
	}
}

// Start implements JobCoordinator.
func (c *jobCoordinator) Start(sessionID uuid.UUID) (*models.AnalysisJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.jobs[sessionID]; ok {
		return snapshotJob(existing, time.Now()), false
	}

	now := time.Now()
	job := &models.AnalysisJob{
		ID:        uuid.New(),
		SessionID: sessionID,
		Status:    models.JobQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.jobs[sessionID] = job

	return snapshotJob(job, now), true
}

// Poll implements JobCoordinator.
func (c *jobCoordinator) Poll(sessionID, jobID uuid.UUID) (*models.AnalysisJob, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	job, ok := c.jobs[sessionID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.ID != jobID {
		return nil, ErrJobMismatch
	}

	return snapshotJob(job, time.Now()), nil
}

// Process implements JobCoordinator.
func (c *jobCoordinator) Process(ctx context.Context, sessionID uuid.UUID) {
	if !c.claim(sessionID) {
		return
	}

	session, err := c.sessions.FindByID(sessionID)
	if err != nil {
		c.logger.Error("failed to load session for evaluation",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		c.fail(sessionID, "The submission could not be loaded for evaluation.", nil)
		return
	}

	result, err := c.evaluator.Evaluate(ctx, session)
	if err != nil {
		var failure *JudgmentFailure
		if errors.As(err, &failure) {
			c.logger.Error("model judgment unusable",
				zap.String("session_id", sessionID.String()),
				zap.Int("parse_fail_count", failure.ParseFailCount),
				zap.String("raw_preview", logPreview(failure.RawOutput)))
			c.fail(sessionID, "The evaluation model returned an unusable response. Please try again.", &models.ErrorDetails{
				RawModelOutput: failure.RawOutput,
				ParseFailCount: failure.ParseFailCount,
			})
			return
		}

		c.logger.Error("evaluation failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		c.fail(sessionID, "Evaluation failed because the judging service was unavailable. Please try again.", nil)
		return
	}

	// Hand the finished report to the session store. The store is an
	// external collaborator; a write failure is logged but does not undo a
	// successful evaluation.
	if payload, marshalErr := json.Marshal(result); marshalErr == nil {
		if saveErr := c.sessions.SaveResult(sessionID, string(payload)); saveErr != nil {
			c.logger.Warn("failed to persist analysis result",
				zap.String("session_id", sessionID.String()),
				zap.Error(saveErr))
		}
	}

	c.complete(sessionID, result)
}

// PendingJobs implements JobCoordinator.
func (c *jobCoordinator) PendingJobs(minAge time.Duration, limit int) []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cutoff := time.Now().Add(-minAge)
	var pending []uuid.UUID
	for sessionID, job := range c.jobs {
		if job.Status == models.JobQueued && job.CreatedAt.Before(cutoff) {
			pending = append(pending, sessionID)
			if limit > 0 && len(pending) >= limit {
				break
			}
		}
	}

	return pending
}

// claim moves a queued job to processing. Returns false when the job is
// missing, already claimed, or terminal, which makes duplicate enqueues
// harmless.
func (c *jobCoordinator) claim(sessionID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[sessionID]
	if !ok || job.Status != models.JobQueued {
		return false
	}

	now := time.Now()
	job.Status = models.JobProcessing
	job.StartedAt = &now
	job.UpdatedAt = now
	job.Progress = processingBaseProgress
	return true
}

// complete transitions exactly once to the terminal complete state, setting
// the result atomically with it.
func (c *jobCoordinator) complete(sessionID uuid.UUID, result *models.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[sessionID]
	if !ok || job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.Status = models.JobComplete
	job.Result = result
	job.Progress = 100
	job.UpdatedAt = now
	job.CompletedAt = &now
}

func (c *jobCoordinator) fail(sessionID uuid.UUID, message string, details *models.ErrorDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[sessionID]
	if !ok || job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.Status = models.JobError
	job.Error = message
	job.ErrorDetails = details
	job.UpdatedAt = now
	job.CompletedAt = &now
}

const (
	queuedMaxProgress      = 20
	processingBaseProgress = 20
	processingSpanProgress = 75
)

// snapshotJob copies a job and fills in its estimated progress. The stored
// job is never touched, which is what keeps Poll read-only.
func snapshotJob(job *models.AnalysisJob, now time.Time) *models.AnalysisJob {
	snapshot := *job
	snapshot.Progress = estimateProgress(job, now)
	return &snapshot
}

// estimateProgress is informational, not authoritative: queued climbs to 20,
// processing approaches 95 asymptotically, and only actual completion reaches
// 100.
func estimateProgress(job *models.AnalysisJob, now time.Time) int {
	switch job.Status {
	case models.JobQueued:
		elapsed := now.Sub(job.CreatedAt).Seconds()
		return int(math.Min(queuedMaxProgress, elapsed*2))
	case models.JobProcessing:
		started := job.CreatedAt
		if job.StartedAt != nil {
			started = *job.StartedAt
		}
		elapsed := now.Sub(started).Seconds()
		return int(processingBaseProgress + processingSpanProgress*(1-math.Exp(-elapsed/60)))
	case models.JobComplete:
		return 100
	default:
		return job.Progress
	}
}
