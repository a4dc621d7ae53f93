package util

import (
	"regexp"
	"strings"
)

var nonAlphaNum = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeID converts a string into a valid D2 identifier.
// D2 identifiers must be alphanumeric with hyphens/underscores, so
// addresses and prefixes lose their dots and slashes.
func SanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = nonAlphaNum.ReplaceAllString(s, "")
	if s == "" {
		return "unknown"
	}
	return s
}

// Path joins sanitized identifiers into a D2 container path such as
// "fabric.core.s2001".
func Path(parts ...string) string {
	ids := make([]string, len(parts))
	for i, p := range parts {
		ids[i] = SanitizeID(p)
	}
	return strings.Join(ids, ".")
}

// Quote wraps a string in double quotes for D2 labels.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
