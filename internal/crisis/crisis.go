// Package crisis provides keyword-based detection of acute distress in user
// messages. Detection is deliberately simple and deterministic: it must work
// even when every remote service is down, so it never calls out anywhere.
package crisis

import "strings"

// Keywords are the phrases that mark a message as a crisis signal. Matching
// is case-insensitive substring matching; false positives are acceptable,
// false negatives are not.
var Keywords = []string{
	"suicide",
	"kill myself",
	"end my life",
	"self-harm",
	"hurt myself",
	"want to die",
	"i'm going to die",
}

// Detected reports whether the message contains any crisis keyword.
func Detected(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
