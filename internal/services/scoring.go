package services

import (
	"math"

	"speech-evaluator/internal/models"
)

// Base rubric weights. They sum to 1.0; when body language cannot be assessed
// its weight is redistributed across the other three.
const (
	weightContent      = 0.40
	weightDelivery     = 0.30
	weightLanguage     = 0.15
	weightBodyLanguage = 0.15
)

// Hard caps on the overall score by classification. Category scores are left
// as the model produced them, so the headline number and the category numbers
// can legitimately disagree while a cap is active.
const (
	capUnscoreable    = 2.5 // too_short, nonsense, off_topic
	capMostlyOffTopic = 6.0
)

// FramingNotAssessableMessage is the fixed feedback attached to every
// body-language metric when camera framing made the category unassessable. The
// report keeps the section and states why it is empty instead of dropping it.
const FramingNotAssessableMessage = "Not assessable: the camera framing did not keep your head, torso, and hands visible during the recording."

// ApplyScoreCap clamps the overall score according to the transcript
// classification. CapApplied is true only when the cap strictly reduced the
// score.
func ApplyScoreCap(overallScore float64, label models.ClassificationLabel) (float64, bool) {
	limit := math.Inf(1)

	switch label {
	case models.ClassificationTooShort, models.ClassificationNonsense, models.ClassificationOffTopic:
		limit = capUnscoreable
	case models.ClassificationMostlyOffTopic:
		limit = capMostlyOffTopic
	}

	if overallScore > limit {
		return limit, true
	}
	return overallScore, false
}

// NormalizeScores turns a raw judgment into the final category scores and
// overall score, rewriting the body-language category when framing evidence
// made it unassessable.
//
// With full framing evidence the base weights pass through unchanged. Without
// it, body language is nulled (score, weighted, all four sub-metrics) with the
// fixed framing message, its weight goes to zero, and the remaining three
// weights are scaled by 1/0.85 and rounded to two decimals so they still sum
// to 1.00. Each weighted value is round1(score x weight); the overall score is
// round1 of their sum, clamped to [0, 10].
func NormalizeScores(judgment *models.RawJudgment, bodyLanguageAssessable bool) (models.CategoryScores, models.BodyLanguageDetail, float64) {
	raw := judgment.Categories

	if bodyLanguageAssessable {
		scores := models.CategoryScores{
			Content:      weightedCategory(raw.Content.Score, weightContent, raw.Content.Feedback),
			Delivery:     weightedCategory(raw.Delivery.Score, weightDelivery, raw.Delivery.Feedback),
			Language:     weightedCategory(raw.Language.Score, weightLanguage, raw.Language.Feedback),
			BodyLanguage: weightedCategory(raw.BodyLanguage.Score, weightBodyLanguage, raw.BodyLanguage.Feedback),
		}
		detail := models.BodyLanguageDetail{
			EyeContact:    models.SubMetric{Score: raw.BodyLanguage.EyeContact.Score, Feedback: raw.BodyLanguage.EyeContact.Feedback},
			Gestures:      models.SubMetric{Score: raw.BodyLanguage.Gestures.Score, Feedback: raw.BodyLanguage.Gestures.Feedback},
			Posture:       models.SubMetric{Score: raw.BodyLanguage.Posture.Score, Feedback: raw.BodyLanguage.Posture.Feedback},
			StagePresence: models.SubMetric{Score: raw.BodyLanguage.StagePresence.Score, Feedback: raw.BodyLanguage.StagePresence.Feedback},
		}
		return scores, detail, sumWeighted(scores.Content, scores.Delivery, scores.Language, scores.BodyLanguage)
	}

	// Redistribute the body-language weight across the remaining categories.
	scale := 1 / (1 - weightBodyLanguage)
	contentWeight := round2(weightContent * scale)
	deliveryWeight := round2(weightDelivery * scale)
	languageWeight := round2(weightLanguage * scale)

	scores := models.CategoryScores{
		Content:  weightedCategory(raw.Content.Score, contentWeight, raw.Content.Feedback),
		Delivery: weightedCategory(raw.Delivery.Score, deliveryWeight, raw.Delivery.Feedback),
		Language: weightedCategory(raw.Language.Score, languageWeight, raw.Language.Feedback),
		BodyLanguage: models.CategoryScore{
			Score:    nil,
			Weight:   0,
			Weighted: nil,
			Feedback: FramingNotAssessableMessage,
		},
	}

	notAssessable := models.SubMetric{Score: nil, Feedback: FramingNotAssessableMessage}
	detail := models.BodyLanguageDetail{
		EyeContact:    notAssessable,
		Gestures:      notAssessable,
		Posture:       notAssessable,
		StagePresence: notAssessable,
	}

	return scores, detail, sumWeighted(scores.Content, scores.Delivery, scores.Language)
}

func weightedCategory(score *float64, weight float64, feedback string) models.CategoryScore {
	category := models.CategoryScore{
		Weight:   weight,
		Feedback: feedback,
	}

	if score != nil {
		value := clampScore(*score)
		weighted := round1(value * weight)
		category.Score = &value
		category.Weighted = &weighted
	}

	return category
}

func sumWeighted(categories ...models.CategoryScore) float64 {
	sum := 0.0
	for _, category := range categories {
		if category.Weighted != nil {
			sum += *category.Weighted
		}
	}
	return clampScore(round1(sum))
}

func clampScore(score float64) float64 {
	return math.Min(10, math.Max(0, score))
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
