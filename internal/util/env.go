// Package util holds small helpers shared across the binaries.
package util

import (
	"os"
	"strings"
)

// GetEnv returns the environment variable value, or fallback when unset or
// empty.
func GetEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// ParseBoolEnv interprets an environment variable as a boolean flag.
// "1", "true", "yes" and "on" (any case) are true; everything else is false.
func ParseBoolEnv(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
