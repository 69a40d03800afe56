package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"speech-evaluator/internal/models"
)

// judgmentTemperature keeps the judge deterministic-ish; the strict re-prompt
// runs colder still.
const (
	judgmentTemperature float32 = 0.3
	repromptTemperature float32 = 0.1
)

// JudgmentRecoverer invokes the judging model and turns its adversarial text
// output into a validated RawJudgment, or into a JudgmentFailure that carries
// the verbatim raw text. It never synthesizes a score.
type JudgmentRecoverer interface {
	Invoke(ctx context.Context, prompt string) (*models.RawJudgment, error)
}

type judgmentRecoverer struct {
	provider ModelProvider
	prompts  *PromptBuilder
	logger   *zap.Logger
}

func NewJudgmentRecoverer(provider ModelProvider, prompts *PromptBuilder, logger *zap.Logger) JudgmentRecoverer {
	return &judgmentRecoverer{
		provider: provider,
		prompts:  prompts,
		logger:   logger,
	}
}

// Invoke implements JudgmentRecoverer.
//
// Repair ladder, each failed rung counted once: raw parse, markdown fence
// strip, prose trim to the outermost JSON object, then a single stricter
// re-prompt of the model followed by the same local repairs on its second
// answer. RepairUsed is true when anything past the raw parse succeeded.
func (r *judgmentRecoverer) Invoke(ctx context.Context, prompt string) (*models.RawJudgment, error) {
	raw, err := r.provider.GenerateTextWithRetry(ctx, prompt, judgmentTemperature)
	if err != nil {
		return nil, fmt.Errorf("model provider: %w", err)
	}

	judgment, failCount, repairUsed, parseErr := parseJudgment(raw)
	if parseErr == nil {
		if repairUsed {
			r.logger.Info("model output repaired locally", zap.Int("parse_fail_count", failCount))
		}
		return r.validated(judgment, raw, failCount, repairUsed)
	}

	// The first answer held no parseable JSON at all. Spend one stricter
	// re-prompt before giving up.
	failCount++
	r.logger.Warn("model output not parseable, re-prompting strictly",
		zap.Int("parse_fail_count", failCount),
		zap.String("raw_preview", logPreview(raw)))

	reprompt := r.prompts.BuildStrictRepromptPrompt(raw)
	second, err := r.provider.GenerateTextWithRetry(ctx, reprompt, repromptTemperature)
	if err != nil {
		return nil, &JudgmentFailure{
			Reason:         fmt.Sprintf("strict re-prompt failed: %v", err),
			RawOutput:      raw,
			ParseFailCount: failCount,
		}
	}

	judgment, secondFails, _, parseErr := parseJudgment(second)
	failCount += secondFails
	if parseErr != nil {
		return nil, &JudgmentFailure{
			Reason:         "no JSON object could be extracted from the model output",
			RawOutput:      raw,
			ParseFailCount: failCount,
		}
	}

	return r.validated(judgment, raw, failCount, true)
}

// validated applies schema validation; a well-formed JSON object with the
// wrong shape fails exactly like unparseable text.
func (r *judgmentRecoverer) validated(judgment *models.RawJudgment, raw string, failCount int, repairUsed bool) (*models.RawJudgment, error) {
	if err := validateJudgmentSchema(judgment); err != nil {
		return nil, &JudgmentFailure{
			Reason:         fmt.Sprintf("schema validation: %v", err),
			RawOutput:      raw,
			ParseFailCount: failCount + 1,
			RepairUsed:     repairUsed,
		}
	}
	return judgment, nil
}

// parseJudgment runs the local repair rungs against one model response.
// failCount is the number of rungs that failed before one succeeded (or all
// rungs when none did); repairUsed is true when success came past the raw
// parse.
func parseJudgment(text string) (judgment *models.RawJudgment, failCount int, repairUsed bool, err error) {
	attempts := []func(string) string{
		func(s string) string { return s },
		stripMarkdownFences,
		trimToJSONObject,
	}

	var lastErr error
	for i, transform := range attempts {
		candidate := strings.TrimSpace(transform(text))
		if candidate == "" {
			lastErr = fmt.Errorf("empty candidate")
			failCount++
			continue
		}

		var parsed models.RawJudgment
		if jsonErr := json.Unmarshal([]byte(candidate), &parsed); jsonErr != nil {
			lastErr = jsonErr
			failCount++
			continue
		}

		return &parsed, failCount, i > 0, nil
	}

	return nil, failCount, false, fmt.Errorf("all parse attempts failed: %w", lastErr)
}

// stripMarkdownFences removes ```json fences the model likes to wrap its
// answer in.
func stripMarkdownFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return text
}

// trimToJSONObject cuts conversational preamble and trailing prose around the
// outermost JSON object.
func trimToJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func validateJudgmentSchema(judgment *models.RawJudgment) error {
	if judgment.Classification == "" {
		return fmt.Errorf("missing classification")
	}
	if !models.ValidClassification(judgment.Classification) {
		return fmt.Errorf("unknown classification %q", judgment.Classification)
	}
	if judgment.OverallScore == nil {
		return fmt.Errorf("missing overall_score")
	}
	if *judgment.OverallScore < 0 || *judgment.OverallScore > 10 {
		return fmt.Errorf("overall_score %v out of range", *judgment.OverallScore)
	}

	categories := map[string]*float64{
		"content":       judgment.Categories.Content.Score,
		"delivery":      judgment.Categories.Delivery.Score,
		"language":      judgment.Categories.Language.Score,
		"body_language": judgment.Categories.BodyLanguage.Score,
	}
	for name, score := range categories {
		if score == nil {
			return fmt.Errorf("missing category score: %s", name)
		}
		if *score < 0 || *score > 10 {
			return fmt.Errorf("category %s score %v out of range", name, *score)
		}
	}

	return nil
}
