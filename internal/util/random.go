// Package util provides utility functions for the Synermind application.
package util

import (
	cryptorand "crypto/rand"
	"encoding/hex"
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
// Uses math/rand/v2 for optimal performance with modern best practices.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand/v2 with optimal entropy utilization for non-cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length) // Pre-allocate capacity for efficiency

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateSessionToken generates a cryptographically secure bearer token for
// authenticated API sessions. Unlike the helpers above this must not be
// predictable, so it reads from crypto/rand.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := cryptorand.Read(buf); err != nil {
		return "", err
	}
	return "st_" + hex.EncodeToString(buf), nil
}

// GenerateTurnID generates a unique conversation turn ID with "t_" prefix.
func GenerateTurnID() string {
	return GenerateRandomID("t_", 32)
}
