package services

import "fmt"

// rawOutputLogPreview bounds how much raw model text goes into log lines. The
// JudgmentFailure itself always carries the verbatim text.
const rawOutputLogPreview = 400

// JudgmentFailure means the model's output could not be coerced into the
// expected JSON shape after bounded repair, or parsed cleanly but failed
// schema validation. It carries the verbatim raw text and the attempt count;
// no score is ever synthesized in its place.
type JudgmentFailure struct {
	Reason         string
	RawOutput      string
	ParseFailCount int
	RepairUsed     bool
}

func (f *JudgmentFailure) Error() string {
	return fmt.Sprintf("model judgment unusable after %d parse attempts: %s", f.ParseFailCount, f.Reason)
}

func logPreview(text string) string {
	if len(text) <= rawOutputLogPreview {
		return text
	}
	return text[:rawOutputLogPreview] + "..."
}
