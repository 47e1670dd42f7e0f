package mood

import (
	"regexp"
	"strconv"
	"strings"
)

// Keyword tiers for the intensity estimate. Checked against the lowercased
// message as substrings; floors first, the softening cap last.
var (
	highIntensityWords = []string{"very", "extremely", "overwhelmed", "panic", "panic attack", "terrified", "intense", "severe", "horrible"}
	medIntensityWords  = []string{"anxious", "anxiety", "stressed", "scared", "worried"}
	lowIntensityWords  = []string{"bit", "little", "slightly", "calm", "okay", "fine", "neutral"}
)

// defaultIntensity is the midpoint used when no cue is present.
const defaultIntensity = 5

var explicitScale = regexp.MustCompile(`\b(10|[1-9])\b`)

// EstimateIntensity estimates a 1-10 intensity for a message from textual
// cues. An explicit number on the scale wins outright; otherwise keyword
// tiers set a floor or ceiling, repeated exclamation marks push the score up,
// and stacked question marks nudge it when the score is not already high.
// The result is always clamped to [1, 10].
func EstimateIntensity(message string) int {
	lower := strings.ToLower(message)

	if m := explicitScale.FindString(lower); m != "" {
		n, _ := strconv.Atoi(m)
		return n
	}

	// Tiers apply cumulatively, with the softening cap last, so a low-cue
	// word always wins over a stronger one in the same message.
	score := defaultIntensity
	if containsAny(lower, highIntensityWords) && score < 8 {
		score = 8
	}
	if containsAny(lower, medIntensityWords) && score < 6 {
		score = 6
	}
	if containsAny(lower, lowIntensityWords) && score > 3 {
		score = 3
	}

	if strings.Contains(message, "!!!") || strings.Contains(message, "!!") {
		score += 2
		if score > 10 {
			score = 10
		}
	}
	if strings.Count(message, "?") >= 2 && score < 8 {
		score++
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
