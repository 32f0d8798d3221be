package utils

import "strings"

// Token sizes are estimated at four characters per token.
const charsPerToken = 4

// CountTokens estimates the number of tokens in text.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len([]rune(text)) / charsPerToken
	if n == 0 {
		return 1
	}
	return n
}

// TruncateToTokenLimit cuts text to roughly limit tokens. When the cut lands
// inside a line it backs off to the previous newline so tabular output keeps
// whole rows; a single oversized line is cut mid-line.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	max := limit * charsPerToken
	if max >= len(runes) {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i+1]
	}
	return cut
}
