package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncationMarker separates the kept head and tail of a trimmed block.
const TruncationMarker = "\n\n...[truncated for context size]...\n\n"

// TrimContext keeps text within limit runes by retaining the first and last
// limit/2 runes around TruncationMarker. Leading and trailing whitespace is
// dropped before measuring.
func TrimContext(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	half := limit / 2
	return string(runes[:half]) + TruncationMarker + string(runes[len(runes)-half:])
}

// CompactLen counts runes excluding whitespace.
func CompactLen(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
