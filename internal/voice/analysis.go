package voice

import (
	"strings"
)

// Feedback bands on keyword coverage.
const (
	ExcellentCoverage = 0.8
	GoodCoverage      = 0.6
)

type Analysis struct {
	Score             float64  `json:"score"`
	Feedback          string   `json:"feedback"`
	KeywordsMentioned []string `json:"keywords_mentioned"`
	MissingKeywords   []string `json:"missing_keywords"`
}

// Analyze scores transcript by the share of keywords it mentions,
// case-insensitively. A question without keywords scores 0.
func Analyze(transcript string, keywords []string) Analysis {
	text := strings.ToLower(transcript)
	a := Analysis{KeywordsMentioned: []string{}, MissingKeywords: []string{}}
	for _, k := range keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			a.KeywordsMentioned = append(a.KeywordsMentioned, k)
		} else {
			a.MissingKeywords = append(a.MissingKeywords, k)
		}
	}
	if len(keywords) > 0 {
		a.Score = float64(len(a.KeywordsMentioned)) / float64(len(keywords))
	}
	a.Feedback = Feedback(a.Score, a.KeywordsMentioned, a.MissingKeywords)
	return a
}

func Feedback(score float64, mentioned, missing []string) string {
	parts := make([]string, 0, 3)
	switch {
	case score >= ExcellentCoverage:
		parts = append(parts, "Excellent response! You covered most of the key points.")
	case score >= GoodCoverage:
		parts = append(parts, "Good response, but there's room for improvement.")
	default:
		parts = append(parts, "You might want to review this topic and try again.")
	}
	if len(mentioned) > 0 {
		parts = append(parts, "You effectively mentioned: "+strings.Join(mentioned, ", "))
	}
	if len(missing) > 0 {
		parts = append(parts, "Consider including these points in your answer: "+strings.Join(missing, ", "))
	}
	return strings.Join(parts, " ")
}
