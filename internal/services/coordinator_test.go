package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"speech-evaluator/internal/models"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.SpeechSession
	saved    map[uuid.UUID]string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[uuid.UUID]*models.SpeechSession),
		saved:    make(map[uuid.UUID]string),
	}
}

func (f *fakeSessionRepo) Create(session *models.SpeechSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionRepo) FindByID(id uuid.UUID) (*models.SpeechSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return session, nil
}

func (f *fakeSessionRepo) SaveResult(id uuid.UUID, resultJSON string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[id] = resultJSON
	return nil
}

func (f *fakeSessionRepo) savedResult(id uuid.UUID) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.saved[id]
	return payload, ok
}

type fakeEvaluator struct {
	mu     sync.Mutex
	result *models.AnalysisResult
	err    error
	calls  int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, session *models.SpeechSession) (*models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEvaluator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestCoordinator(repo *fakeSessionRepo, evaluator *fakeEvaluator) (JobCoordinator, uuid.UUID) {
	session := testSession(coherentTranscript(150), 180, 150, allVisible())
	repo.Create(session)
	return NewJobCoordinator(repo, evaluator, zap.NewNop()), session.ID
}

func completedResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Classification:         models.ClassificationNormal,
		BodyLanguageAssessable: true,
		OverallScore:           7.2,
	}
}

// TestStartIdempotent: a duplicate start (page reload, double click) must
// return the existing job, never create a second one.
func TestStartIdempotent(t *testing.T) {
	coordinator, sessionID := newTestCoordinator(newFakeSessionRepo(), &fakeEvaluator{result: completedResult()})

	first, created := coordinator.Start(sessionID)
	if !created {
		t.Fatal("first start should create the job")
	}

	second, created := coordinator.Start(sessionID)
	if created {
		t.Fatal("second start must not create a new job")
	}
	if second.ID != first.ID {
		t.Fatalf("job id changed across starts: %s vs %s", first.ID, second.ID)
	}
}

func TestStartIdempotentUnderConcurrency(t *testing.T) {
	coordinator, sessionID := newTestCoordinator(newFakeSessionRepo(), &fakeEvaluator{result: completedResult()})

	var mu sync.Mutex
	createdCount := 0
	ids := make(map[uuid.UUID]struct{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, created := coordinator.Start(sessionID)
			mu.Lock()
			defer mu.Unlock()
			if created {
				createdCount++
			}
			ids[job.ID] = struct{}{}
		}()
	}
	wg.Wait()

	if createdCount != 1 {
		t.Fatalf("created count = %d, want 1", createdCount)
	}
	if len(ids) != 1 {
		t.Fatalf("distinct job ids = %d, want 1", len(ids))
	}
}

func TestPollReadOnly(t *testing.T) {
	coordinator, sessionID := newTestCoordinator(newFakeSessionRepo(), &fakeEvaluator{result: completedResult()})
	job, _ := coordinator.Start(sessionID)

	for i := 0; i < 5; i++ {
		snapshot, err := coordinator.Poll(sessionID, job.ID)
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		if snapshot.Status != models.JobQueued {
			t.Fatalf("poll %d status = %s, want queued", i, snapshot.Status)
		}
	}

	if _, err := coordinator.Poll(sessionID, uuid.New()); !errors.Is(err, ErrJobMismatch) {
		t.Fatalf("wrong job id error = %v, want ErrJobMismatch", err)
	}
	if _, err := coordinator.Poll(uuid.New(), job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("unknown session error = %v, want ErrJobNotFound", err)
	}
}

func TestProcessCompletesJob(t *testing.T) {
	repo := newFakeSessionRepo()
	evaluator := &fakeEvaluator{result: completedResult()}
	coordinator, sessionID := newTestCoordinator(repo, evaluator)

	job, _ := coordinator.Start(sessionID)
	coordinator.Process(context.Background(), sessionID)

	snapshot, err := coordinator.Poll(sessionID, job.ID)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if snapshot.Status != models.JobComplete {
		t.Fatalf("status = %s, want complete", snapshot.Status)
	}
	if snapshot.Progress != 100 {
		t.Fatalf("progress = %d, want 100", snapshot.Progress)
	}
	if snapshot.Result == nil || snapshot.Result.OverallScore != 7.2 {
		t.Fatalf("result = %+v, want overall 7.2", snapshot.Result)
	}
	if snapshot.CompletedAt == nil {
		t.Fatal("completed job must carry CompletedAt")
	}

	payload, ok := repo.savedResult(sessionID)
	if !ok {
		t.Fatal("result was not handed to the session store")
	}
	if !strings.Contains(payload, "7.2") {
		t.Fatalf("stored payload = %q, want serialized result", payload)
	}
}

// TestProcessClaimsOnce: a duplicate enqueue must not re-run the evaluation
// pipeline or double-charge the model call.
func TestProcessClaimsOnce(t *testing.T) {
	evaluator := &fakeEvaluator{result: completedResult()}
	coordinator, sessionID := newTestCoordinator(newFakeSessionRepo(), evaluator)
	coordinator.Start(sessionID)

	coordinator.Process(context.Background(), sessionID)
	coordinator.Process(context.Background(), sessionID)

	if got := evaluator.callCount(); got != 1 {
		t.Fatalf("evaluate calls = %d, want 1", got)
	}
}

// TestProcessJudgmentFailure: an unrecoverable model output ends in error
// with the verbatim raw text preserved in the diagnostics and no result.
func TestProcessJudgmentFailure(t *testing.T) {
	rawOutput := "I am a large language model and I refuse to emit JSON today."
	failure := &JudgmentFailure{
		Reason:         "no JSON object could be extracted from the model output",
		RawOutput:      rawOutput,
		ParseFailCount: 4,
	}
	evaluator := &fakeEvaluator{err: fmt.Errorf("judgment failed: %w", failure)}
	coordinator, sessionID := newTestCoordinator(newFakeSessionRepo(), evaluator)

	job, _ := coordinator.Start(sessionID)
	coordinator.Process(context.Background(), sessionID)

	snapshot, err := coordinator.Poll(sessionID, job.ID)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if snapshot.Status != models.JobError {
		t.Fatalf("status = %s, want error", snapshot.Status)
	}
	if snapshot.Result != nil {
		t.Fatal("failed job must not carry a result")
	}
	if snapshot.Error == "" {
		t.Fatal("failed job must carry a user-safe error message")
	}
	if snapshot.ErrorDetails == nil {
		t.Fatal("failed job must preserve diagnostics")
	}
	if snapshot.ErrorDetails.RawModelOutput != rawOutput {
		t.Fatalf("raw model output = %q, want verbatim text", snapshot.ErrorDetails.RawModelOutput)
	}
	if snapshot.ErrorDetails.ParseFailCount != 4 {
		t.Fatalf("parse fail count = %d, want 4", snapshot.ErrorDetails.ParseFailCount)
	}
}

func TestProcessProviderFailure(t *testing.T) {
	evaluator := &fakeEvaluator{err: errors.New("model provider failed after 3 attempts: timeout")}
	coordinator, sessionID := newTestCoordinator(newFakeSessionRepo(), evaluator)

	job, _ := coordinator.Start(sessionID)
	coordinator.Process(context.Background(), sessionID)

	snapshot, _ := coordinator.Poll(sessionID, job.ID)
	if snapshot.Status != models.JobError {
		t.Fatalf("status = %s, want error", snapshot.Status)
	}
	if snapshot.Error == "" {
		t.Fatal("expected user-safe error message")
	}
}

func TestPendingJobsListsStalled(t *testing.T) {
	coordinator, sessionID := newTestCoordinator(newFakeSessionRepo(), &fakeEvaluator{result: completedResult()})
	coordinator.Start(sessionID)

	// Fresh jobs are not requeue candidates.
	if pending := coordinator.PendingJobs(time.Minute, 10); len(pending) != 0 {
		t.Fatalf("pending = %d, want 0 for fresh job", len(pending))
	}

	// With no minimum age the queued job shows up.
	pending := coordinator.PendingJobs(0, 10)
	if len(pending) != 1 || pending[0] != sessionID {
		t.Fatalf("pending = %v, want [%s]", pending, sessionID)
	}

	coordinator.Process(context.Background(), sessionID)
	if pending := coordinator.PendingJobs(0, 10); len(pending) != 0 {
		t.Fatalf("pending after processing = %d, want 0", len(pending))
	}
}

func TestEstimateProgress(t *testing.T) {
	now := time.Now()

	queued := &models.AnalysisJob{Status: models.JobQueued, CreatedAt: now.Add(-5 * time.Second)}
	if got := estimateProgress(queued, now); got != 10 {
		t.Fatalf("queued 5s progress = %d, want 10", got)
	}

	queuedLong := &models.AnalysisJob{Status: models.JobQueued, CreatedAt: now.Add(-5 * time.Minute)}
	if got := estimateProgress(queuedLong, now); got != 20 {
		t.Fatalf("queued 5m progress = %d, want capped at 20", got)
	}

	started := now.Add(-60 * time.Second)
	processing := &models.AnalysisJob{Status: models.JobProcessing, CreatedAt: started, StartedAt: &started}
	if got := estimateProgress(processing, now); got != 67 {
		t.Fatalf("processing 60s progress = %d, want 67", got)
	}

	// Processing approaches 95 but never reaches 100 before completion.
	longStarted := now.Add(-time.Hour)
	stuck := &models.AnalysisJob{Status: models.JobProcessing, CreatedAt: longStarted, StartedAt: &longStarted}
	if got := estimateProgress(stuck, now); got < 90 || got >= 100 {
		t.Fatalf("long processing progress = %d, want in [90, 100)", got)
	}

	complete := &models.AnalysisJob{Status: models.JobComplete}
	if got := estimateProgress(complete, now); got != 100 {
		t.Fatalf("complete progress = %d, want 100", got)
	}
}
