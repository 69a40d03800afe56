package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"speech-evaluator/internal/models"
)

// rubricDocTypes are the guidance buckets consulted before judging.
var rubricDocTypes = []string{"scoring_rubric", "delivery_guide"}

// Canned per-category feedback for the zero-evidence skip path. The model is
// never consulted for these, so the feedback explains the screen instead of
// pretending to have judged content.
const (
	feedbackTooShort = "Not evaluated: the recording was too short to score fairly. Aim for at least one minute and one hundred words."
	feedbackNonsense = "Not evaluated: the transcript did not read as a coherent speech, so the rubric could not be applied."
)

// EvaluatorService runs the full scoring pipeline for one submission:
// heuristic classification, optional model judgment with recovery, evidence
// normalization, then the score cap.
type EvaluatorService interface {
	Evaluate(ctx context.Context, session *models.SpeechSession) (*models.AnalysisResult, error)
}

type evaluatorService struct {
	recoverer     JudgmentRecoverer
	rubricService RubricService
	promptBuilder *PromptBuilder
	logger        *zap.Logger
}

func NewEvaluatorService(
	recoverer JudgmentRecoverer,
	rubricService RubricService,
	logger *zap.Logger,
) EvaluatorService {
	return &evaluatorService{
		recoverer:     recoverer,
		rubricService: rubricService,
		promptBuilder: NewPromptBuilder(),
		logger:        logger,
	}
}

// Evaluate implements EvaluatorService. Classification and score math are
// pure and total, so the only errors that can escape are model-facing ones;
// those carry their raw diagnostics up to the job record.
func (e *evaluatorService) Evaluate(ctx context.Context, session *models.SpeechSession) (*models.AnalysisResult, error) {
	classification := ClassifyTranscript(session.Transcript, session.DurationSeconds, session.WordCount)
	assessable := session.Framing().BodyLanguageAssessable()

	e.logger.Info("transcript classified",
		zap.String("session_id", session.ID.String()),
		zap.String("label", string(classification.Label)),
		zap.Float64("unique_word_ratio", classification.UniqueWordRatio),
		zap.Int("triplet_repetitions", classification.TripletRepetitions))

	// Unscoreable transcripts skip the model call entirely.
	if classification.SkipsModelCall() {
		return e.zeroEvidenceResult(classification.Label, assessable), nil
	}

	rubricContext := e.retrieveRubricContext(ctx, session)

	prompt := e.promptBuilder.BuildJudgmentPrompt(
		session.Transcript,
		session.Theme,
		session.Prompt,
		rubricContext,
		session.DurationSeconds,
		session.WordCount,
	)

	judgment, err := e.recoverer.Invoke(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("judgment failed: %w", err)
	}

	// The model may downgrade a heuristically-normal transcript to one of
	// the off-topic labels; its classification is final.
	label := judgment.Classification

	scores, detail, overall := NormalizeScores(judgment, assessable)
	cappedScore, capApplied := ApplyScoreCap(overall, label)

	e.logger.Info("evaluation complete",
		zap.String("session_id", session.ID.String()),
		zap.String("classification", string(label)),
		zap.Float64("overall_score", cappedScore),
		zap.Bool("cap_applied", capApplied),
		zap.Bool("body_language_assessable", assessable))

	return &models.AnalysisResult{
		Classification:         label,
		CapApplied:             capApplied,
		BodyLanguageAssessable: assessable,
		OverallScore:           cappedScore,
		Categories:             scores,
		BodyLanguageDetail:     detail,
	}, nil
}

func (e *evaluatorService) retrieveRubricContext(ctx context.Context, session *models.SpeechSession) string {
	if e.rubricService == nil {
		return "No additional rubric guidance available."
	}

	query := e.promptBuilder.BuildRetrievalQuery("scoring_rubric", session.Theme)
	guidance, err := e.rubricService.RetrieveGuidance(ctx, query, rubricDocTypes, 3)
	if err != nil {
		e.logger.Warn("rubric guidance retrieval failed, judging without it",
			zap.String("session_id", session.ID.String()),
			zap.Error(err))
		return "No additional rubric guidance available."
	}

	return guidance
}

// zeroEvidenceResult builds the capped result returned without a model call.
// All category scores are zero with canned feedback naming the screen that
// fired; framing normalization still applies so the body-language section is
// reported consistently.
func (e *evaluatorService) zeroEvidenceResult(label models.ClassificationLabel, assessable bool) *models.AnalysisResult {
	feedback := feedbackTooShort
	if label == models.ClassificationNonsense {
		feedback = feedbackNonsense
	}

	zero := 0.0
	judgment := &models.RawJudgment{
		Classification: label,
		OverallScore:   &zero,
		Categories: models.RawCategories{
			Content:  models.RawCategory{Score: &zero, Feedback: feedback},
			Delivery: models.RawCategory{Score: &zero, Feedback: feedback},
			Language: models.RawCategory{Score: &zero, Feedback: feedback},
			BodyLanguage: models.RawBodyLanguage{
				Score:         &zero,
				Feedback:      feedback,
				EyeContact:    models.RawMetric{Score: &zero, Feedback: feedback},
				Gestures:      models.RawMetric{Score: &zero, Feedback: feedback},
				Posture:       models.RawMetric{Score: &zero, Feedback: feedback},
				StagePresence: models.RawMetric{Score: &zero, Feedback: feedback},
			},
		},
	}

	scores, detail, overall := NormalizeScores(judgment, assessable)
	cappedScore, capApplied := ApplyScoreCap(overall, label)

	return &models.AnalysisResult{
		Classification:         label,
		CapApplied:             capApplied,
		BodyLanguageAssessable: assessable,
		OverallScore:           cappedScore,
		Categories:             scores,
		BodyLanguageDetail:     detail,
	}
}
