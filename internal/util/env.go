package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean switch from the environment. Unset variables
// return the default; true/1/yes/on enable, false/0/no/off disable, anything
// else is logged and falls back to the default.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv: unrecognized boolean value, using default", "key", key, "value", val, "default", defaultValue)
	return defaultValue
}
