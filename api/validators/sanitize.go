package validators

import "strings"

// SanitizeString trims surrounding whitespace and truncates free-text input
// such as audit reasons and actor names. Truncation happens on a rune
// boundary so multi-byte characters are never split.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxLen {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}
