package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"speech-evaluator/internal/models"
)

type fakeRecoverer struct {
	judgment *models.RawJudgment
	err      error
	calls    int
}

func (f *fakeRecoverer) Invoke(ctx context.Context, prompt string) (*models.RawJudgment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.judgment, nil
}

func testSession(transcript string, duration float64, wordCount int, framing models.FramingEvidence) *models.SpeechSession {
	return &models.SpeechSession{
		ID:              uuid.New(),
		Theme:           "The value of failure",
		Prompt:          "Tell us about a failure that taught you something.",
		Transcript:      transcript,
		DurationSeconds: duration,
		WordCount:       wordCount,
		HeadVisible:     framing.HeadVisible,
		TorsoVisible:    framing.TorsoVisible,
		HandsVisible:    framing.HandsVisible,
	}
}

func allVisible() models.FramingEvidence {
	return models.FramingEvidence{HeadVisible: true, TorsoVisible: true, HandsVisible: true}
}

// TestEvaluateSkipsModelForShortTranscript: an unscoreable transcript must
// produce an immediate capped zero-evidence result without spending a model
// call.
func TestEvaluateSkipsModelForShortTranscript(t *testing.T) {
	recoverer := &fakeRecoverer{}
	evaluator := NewEvaluatorService(recoverer, nil, zap.NewNop())

	result, err := evaluator.Evaluate(context.Background(), testSession("too few words here", 10, 4, allVisible()))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if recoverer.calls != 0 {
		t.Fatalf("model calls = %d, want 0", recoverer.calls)
	}
	if result.Classification != models.ClassificationTooShort {
		t.Fatalf("classification = %s, want too_short", result.Classification)
	}
	if result.OverallScore > capUnscoreable {
		t.Fatalf("overall = %v, want <= %v", result.OverallScore, capUnscoreable)
	}
	if result.Categories.Content.Feedback != feedbackTooShort {
		t.Fatalf("content feedback = %q, want canned too_short message", result.Categories.Content.Feedback)
	}
}

func TestEvaluateSkipPathRespectsFraming(t *testing.T) {
	recoverer := &fakeRecoverer{}
	evaluator := NewEvaluatorService(recoverer, nil, zap.NewNop())

	noHands := models.FramingEvidence{HeadVisible: true, TorsoVisible: true, HandsVisible: false}
	result, err := evaluator.Evaluate(context.Background(), testSession(strings.Repeat("hum ", 30), 5, 30, noHands))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if result.BodyLanguageAssessable {
		t.Fatal("body language must not be assessable with hands off camera")
	}
	if result.Categories.BodyLanguage.Score != nil {
		t.Fatal("body language score must be nil on the skip path too")
	}
	if result.BodyLanguageDetail.Gestures.Feedback != FramingNotAssessableMessage {
		t.Fatal("sub-metrics must carry the framing message")
	}
}

func TestEvaluateNormalPath(t *testing.T) {
	recoverer := &fakeRecoverer{judgment: testJudgment(7.5, 7.0, 7.2, 6.8)}
	evaluator := NewEvaluatorService(recoverer, nil, zap.NewNop())

	session := testSession(coherentTranscript(150), 180, 150, allVisible())
	result, err := evaluator.Evaluate(context.Background(), session)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if recoverer.calls != 1 {
		t.Fatalf("model calls = %d, want 1", recoverer.calls)
	}
	if result.OverallScore != 7.2 {
		t.Fatalf("overall = %v, want 7.2", result.OverallScore)
	}
	if !result.BodyLanguageAssessable {
		t.Fatal("expected body language to be assessable")
	}
	if result.CapApplied {
		t.Fatal("no cap should apply to a normal classification")
	}
}

func TestEvaluateRenormalizesWithoutHands(t *testing.T) {
	recoverer := &fakeRecoverer{judgment: testJudgment(7.5, 7.0, 7.2, 6.8)}
	evaluator := NewEvaluatorService(recoverer, nil, zap.NewNop())

	noHands := models.FramingEvidence{HeadVisible: true, TorsoVisible: true, HandsVisible: false}
	result, err := evaluator.Evaluate(context.Background(), testSession(coherentTranscript(150), 180, 150, noHands))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if result.OverallScore != 7.3 {
		t.Fatalf("overall = %v, want 7.3", result.OverallScore)
	}
	if result.Categories.Content.Weight != 0.47 {
		t.Fatalf("content weight = %v, want 0.47", result.Categories.Content.Weight)
	}
	if result.Categories.BodyLanguage.Score != nil {
		t.Fatal("body language score must be nil")
	}
}

// TestEvaluateModelDowngradesClassification: the model may downgrade a
// heuristically-normal transcript to off_topic; the cap then binds the
// headline score while category scores stay as judged.
func TestEvaluateModelDowngradesClassification(t *testing.T) {
	judgment := testJudgment(9.0, 9.0, 9.0, 9.0)
	judgment.Classification = models.ClassificationOffTopic

	recoverer := &fakeRecoverer{judgment: judgment}
	evaluator := NewEvaluatorService(recoverer, nil, zap.NewNop())

	result, err := evaluator.Evaluate(context.Background(), testSession(coherentTranscript(150), 180, 150, allVisible()))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if result.Classification != models.ClassificationOffTopic {
		t.Fatalf("classification = %s, want off_topic", result.Classification)
	}
	if result.OverallScore != 2.5 || !result.CapApplied {
		t.Fatalf("overall = (%v, capApplied=%v), want (2.5, true)", result.OverallScore, result.CapApplied)
	}
	if *result.Categories.Content.Score != 9.0 {
		t.Fatalf("content score = %v, want 9.0 (categories stay as judged)", *result.Categories.Content.Score)
	}
}

func TestEvaluatePropagatesJudgmentFailure(t *testing.T) {
	failure := &JudgmentFailure{
		Reason:         "no JSON object could be extracted from the model output",
		RawOutput:      "free-form prose",
		ParseFailCount: 4,
	}
	recoverer := &fakeRecoverer{err: fmt.Errorf("wrapped: %w", failure)}
	evaluator := NewEvaluatorService(recoverer, nil, zap.NewNop())

	result, err := evaluator.Evaluate(context.Background(), testSession(coherentTranscript(150), 180, 150, allVisible()))
	if result != nil {
		t.Fatal("no result may be produced on judgment failure")
	}

	var got *JudgmentFailure
	if !errors.As(err, &got) {
		t.Fatalf("error type = %T, want wrapped *JudgmentFailure", err)
	}
	if got.RawOutput != "free-form prose" {
		t.Fatalf("raw output = %q, want preserved", got.RawOutput)
	}
}
