package models

type ClassificationLabel string

const (
	ClassificationNormal         ClassificationLabel = "normal"
	ClassificationTooShort       ClassificationLabel = "too_short"
	ClassificationNonsense       ClassificationLabel = "nonsense"
	ClassificationOffTopic       ClassificationLabel = "off_topic"
	ClassificationMostlyOffTopic ClassificationLabel = "mostly_off_topic"
)

// ValidClassification reports whether label is one of the five known labels.
func ValidClassification(label ClassificationLabel) bool {
	switch label {
	case ClassificationNormal, ClassificationTooShort, ClassificationNonsense,
		ClassificationOffTopic, ClassificationMostlyOffTopic:
		return true
	}
	return false
}

// TranscriptClassification is the heuristic verdict on a transcript, together
// with the lexical signals it was derived from. Computing it twice on the same
// inputs yields the same value.
//
// The heuristic only ever assigns normal, too_short or nonsense; the off-topic
// labels require semantic judgment and come exclusively from the model's own
// classification field.
type TranscriptClassification struct {
	Label              ClassificationLabel `json:"label"`
	WordCount          int                 `json:"word_count"`
	UniqueWordRatio    float64             `json:"unique_word_ratio"`
	HasConnectors      bool                `json:"has_connectors"`
	TripletRepetitions int                 `json:"triplet_repetitions"`
}

// SkipsModelCall reports whether the heuristic verdict alone justifies
// skipping the model call and returning a zero-evidence result.
func (c TranscriptClassification) SkipsModelCall() bool {
	return c.Label == ClassificationTooShort || c.Label == ClassificationNonsense
}
