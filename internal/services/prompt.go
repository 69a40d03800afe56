package services

import (
	"fmt"
	"strings"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildJudgmentPrompt creates the judging prompt for a recorded speech.
func (pb *PromptBuilder) BuildJudgmentPrompt(transcript, theme, speechPrompt, rubricContext string, durationSeconds float64, wordCount int) string {
	return fmt.Sprintf(`You are an expert public-speaking coach scoring a recorded speech against a rubric.

SPEECH THEME:
%s

SPEAKING PROMPT:
%s

RUBRIC GUIDANCE:
%s

SPEECH METADATA:
- Duration: %.0f seconds
- Word count: %d

TRANSCRIPT:
%s

First classify the transcript. Use "normal" when the speech genuinely addresses the theme, "off_topic" when it ignores the theme entirely, and "mostly_off_topic" when only a minority of it relates to the theme.

Then score each rubric category on a 0-10 scale:
1. Content (Weight: 40%%) - Relevance to the theme, structure, argument quality
2. Delivery (Weight: 30%%) - Pacing, vocal variety, fluency, filler words
3. Language (Weight: 15%%) - Vocabulary, grammar, register
4. Body Language (Weight: 15%%) - Scored through the sub-metrics eye_contact, gestures, posture, stage_presence

Return your response as a single JSON object in exactly this format:
{
  "classification": "<normal | off_topic | mostly_off_topic>",
  "overall_score": <0-10, weighted across categories>,
  "categories": {
    "content": {"score": <0-10>, "feedback": "<2-3 sentences>"},
    "delivery": {"score": <0-10>, "feedback": "<2-3 sentences>"},
    "language": {"score": <0-10>, "feedback": "<2-3 sentences>"},
    "body_language": {
      "score": <0-10>,
      "feedback": "<2-3 sentences>",
      "eye_contact": {"score": <0-10>, "feedback": "<1 sentence>"},
      "gestures": {"score": <0-10>, "feedback": "<1 sentence>"},
      "posture": {"score": <0-10>, "feedback": "<1 sentence>"},
      "stage_presence": {"score": <0-10>, "feedback": "<1 sentence>"}
    }
  }
}

Be specific: quote or paraphrase moments from the transcript to justify scores. Return ONLY the JSON object.`,
		theme, speechPrompt, rubricContext, durationSeconds, wordCount, transcript)
}

// BuildStrictRepromptPrompt asks the model to re-emit its previous answer as
// bare JSON. Used once, when the first response contains no parseable JSON.
func (pb *PromptBuilder) BuildStrictRepromptPrompt(previousOutput string) string {
	return fmt.Sprintf(`Your previous response could not be parsed as JSON.

PREVIOUS RESPONSE:
%s

Re-emit the evaluation as a single raw JSON object with the keys "classification", "overall_score" and "categories" (content, delivery, language, body_language with eye_contact, gestures, posture, stage_presence sub-metrics). Do not use markdown fences. Do not add any text before or after the JSON object.`,
		previousOutput)
}

// BuildRetrievalQuery creates the query text for rubric guidance retrieval.
func (pb *PromptBuilder) BuildRetrievalQuery(docType, theme string) string {
	switch docType {
	case "scoring_rubric":
		return "Speech scoring criteria, category weights, and grading guidelines"
	case "delivery_guide":
		return "Guidance on speech delivery, pacing, and body language"
	case "theme_material":
		return fmt.Sprintf("Background material on the speech theme %q", theme)
	default:
		return theme
	}
}

// FormatRubricContext flattens retrieved guidance chunks into prompt text.
func FormatRubricContext(chunks []GuidanceChunk) string {
	if len(chunks) == 0 {
		return "No additional rubric guidance available."
	}

	var parts []string
	for i, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("--- Guidance %d (Score: %.2f) ---\n%s",
			i+1, chunk.Score, strings.TrimSpace(chunk.Text)))
	}

	return strings.Join(parts, "\n\n")
}
