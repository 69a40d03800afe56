package services

import (
	"strings"
	"unicode"

	"speech-evaluator/internal/models"
)

// Canonical classifier thresholds. A speech shorter than a minute or thinner
// than a hundred words cannot be scored fairly against the full rubric.
const (
	minDurationSeconds   = 60
	minWordCount         = 100
	nonsenseUniqueRatio  = 0.15
	nonsenseTripletCount = 3
)

// discourseConnectors are structure words whose presence distinguishes a
// repetitive but coherent speech from word salad.
var discourseConnectors = map[string]struct{}{
	"because":      {},
	"therefore":    {},
	"however":      {},
	"finally":      {},
	"moreover":     {},
	"furthermore":  {},
	"although":     {},
	"since":        {},
	"consequently": {},
	"firstly":      {},
	"secondly":     {},
}

// ClassifyTranscript screens a transcript before any model call is spent on
// it. It is a pure, total function: identical inputs always yield the same
// classification and it never fails.
//
// too_short dominates every other rule, so a short nonsense transcript is
// reported as too_short. Nonsense fires on either of two independent triggers:
// a collapsed vocabulary (unique-word ratio under 0.15 across more than a
// hundred words), or mechanical triplet repetition with no discourse
// connectors anywhere in the text. The off-topic labels are never assigned
// here; judging relevance to a theme takes language understanding that lexical
// statistics cannot provide, so those labels belong to the model alone.
func ClassifyTranscript(transcript string, durationSeconds float64, wordCount int) models.TranscriptClassification {
	tokens := tokenizeTranscript(transcript)

	classification := models.TranscriptClassification{
		Label:              models.ClassificationNormal,
		WordCount:          wordCount,
		UniqueWordRatio:    uniqueWordRatio(tokens),
		HasConnectors:      hasDiscourseConnectors(tokens),
		TripletRepetitions: countTripletRepetitions(tokens),
	}

	if durationSeconds < minDurationSeconds || wordCount < minWordCount {
		classification.Label = models.ClassificationTooShort
		return classification
	}

	ratioCollapse := classification.UniqueWordRatio < nonsenseUniqueRatio && wordCount > minWordCount
	mechanicalRepetition := classification.TripletRepetitions >= nonsenseTripletCount && !classification.HasConnectors

	if ratioCollapse || mechanicalRepetition {
		classification.Label = models.ClassificationNonsense
	}

	return classification
}

// CountWords counts whitespace-separated words, the same measure the
// classifier thresholds are calibrated against.
func CountWords(transcript string) int {
	return len(strings.Fields(transcript))
}

func tokenizeTranscript(transcript string) []string {
	return strings.FieldsFunc(strings.ToLower(transcript), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func uniqueWordRatio(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}

	unique := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		unique[token] = struct{}{}
	}

	return float64(len(unique)) / float64(len(tokens))
}

func hasDiscourseConnectors(tokens []string) bool {
	for _, token := range tokens {
		if _, ok := discourseConnectors[token]; ok {
			return true
		}
	}
	return false
}

// countTripletRepetitions counts non-overlapping runs of the same token three
// times in a row.
func countTripletRepetitions(tokens []string) int {
	count := 0
	for i := 0; i+2 < len(tokens); {
		if tokens[i] == tokens[i+1] && tokens[i] == tokens[i+2] {
			count++
			i += 3
			continue
		}
		i++
	}
	return count
}
