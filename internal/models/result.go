package models

// CategoryScore is one rubric category in the final report. Score and Weighted
// are nil when the category could not be evaluated; Weight is then zero and the
// remaining categories carry the redistributed weight.
type CategoryScore struct {
	Score    *float64 `json:"score"`
	Weight   float64  `json:"weight"`
	Weighted *float64 `json:"weighted"`
	Feedback string   `json:"feedback,omitempty"`
}

type CategoryScores struct {
	Content      CategoryScore `json:"content"`
	Delivery     CategoryScore `json:"delivery"`
	Language     CategoryScore `json:"language"`
	BodyLanguage CategoryScore `json:"body_language"`
}

// SubMetric is one of the four body-language sub-metrics. When framing makes
// body language unassessable the score is nil and the feedback is a fixed
// message explaining why, so the report never silently drops the section.
type SubMetric struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

type BodyLanguageDetail struct {
	EyeContact    SubMetric `json:"eye_contact"`
	Gestures      SubMetric `json:"gestures"`
	Posture       SubMetric `json:"posture"`
	StagePresence SubMetric `json:"stage_presence"`
}

// AnalysisResult is the validated, post-processing score report. It is created
// once per completed job and never mutated afterwards.
type AnalysisResult struct {
	Classification         ClassificationLabel `json:"classification"`
	CapApplied             bool                `json:"cap_applied"`
	BodyLanguageAssessable bool                `json:"body_language_assessable"`
	OverallScore           float64             `json:"overall_score"`
	Categories             CategoryScores      `json:"categories"`
	BodyLanguageDetail     BodyLanguageDetail  `json:"body_language_detail"`
}
