package models

// RawJudgment is the model's unvalidated output, exactly as parsed from its
// JSON response. Required numeric fields are pointers so that a missing field
// can be told apart from a legitimate zero during schema validation.
type RawJudgment struct {
	Classification ClassificationLabel `json:"classification"`
	OverallScore   *float64            `json:"overall_score"`
	Categories     RawCategories       `json:"categories"`
}

type RawCategories struct {
	Content      RawCategory     `json:"content"`
	Delivery     RawCategory     `json:"delivery"`
	Language     RawCategory     `json:"language"`
	BodyLanguage RawBodyLanguage `json:"body_language"`
}

type RawCategory struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

type RawBodyLanguage struct {
	Score         *float64  `json:"score"`
	Feedback      string    `json:"feedback"`
	EyeContact    RawMetric `json:"eye_contact"`
	Gestures      RawMetric `json:"gestures"`
	Posture       RawMetric `json:"posture"`
	StagePresence RawMetric `json:"stage_presence"`
}

type RawMetric struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}
