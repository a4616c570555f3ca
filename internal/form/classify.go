package form

import "strings"

type Outcome int

const (
	OutcomeAmbiguous Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "ambiguous"
	}
}

// SuccessPhrases and FailurePhrases are matched as lowercase substrings.
var (
	SuccessPhrases = []string{"thank you", "success", "submitted", "received", "approved", "added successfully"}
	FailurePhrases = []string{"error", "required", "invalid", "captcha", "try again", "failed"}
)

// Classify reads the post-submit page text. Any failure phrase wins over
// success phrases.
func Classify(text string) Outcome {
	lower := strings.ToLower(text)
	if containsAny(lower, FailurePhrases) {
		return OutcomeFailure
	}
	if containsAny(lower, SuccessPhrases) {
		return OutcomeSuccess
	}
	return OutcomeAmbiguous
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
