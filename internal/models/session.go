package models

import (
	"time"

	"github.com/google/uuid"
)

// SpeechSession is one recorded speech submission. The result column holds the
// finished analysis report as JSON; the store's only obligation is to hand the
// same JSON back.
type SpeechSession struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Theme           string    `gorm:"type:text" json:"theme"`
	Prompt          string    `gorm:"type:text" json:"prompt"`
	Transcript      string    `gorm:"type:text;not null" json:"transcript"`
	DurationSeconds float64   `gorm:"type:decimal(8,2)" json:"duration_seconds"`
	WordCount       int       `gorm:"type:integer" json:"word_count"`
	HeadVisible     bool      `gorm:"not null;default:false" json:"head_visible"`
	TorsoVisible    bool      `gorm:"not null;default:false" json:"torso_visible"`
	HandsVisible    bool      `gorm:"not null;default:false" json:"hands_visible"`
	ResultJSON      *string   `gorm:"type:text" json:"result_json,omitempty"`
	CreatedAt       time.Time `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt       time.Time `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (s *SpeechSession) TableName() string {
	return "speech_sessions"
}

// Framing reconstructs the client-supplied framing evidence for this session.
func (s *SpeechSession) Framing() FramingEvidence {
	return FramingEvidence{
		HeadVisible:  s.HeadVisible,
		TorsoVisible: s.TorsoVisible,
		HandsVisible: s.HandsVisible,
	}
}

// FramingEvidence is supplied by the recording client at submission time and is
// never inferred server-side.
type FramingEvidence struct {
	HeadVisible  bool `json:"head_visible"`
	TorsoVisible bool `json:"torso_visible"`
	HandsVisible bool `json:"hands_visible"`
}

// BodyLanguageAssessable reports whether the body-language rubric category can
// be evaluated at all: head, torso and hands must all be on camera.
func (f FramingEvidence) BodyLanguageAssessable() bool {
	return f.HeadVisible && f.TorsoVisible && f.HandsVisible
}
