package utils

// Snippet returns the first maxLen runes of s. Unlike a display truncation
// no ellipsis is appended; snippets are stored verbatim alongside chunks.
func Snippet(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
