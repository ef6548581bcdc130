package util

import (
	"regexp"
	"strings"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// SanitizeText normalizes extracted disclosure text before it reaches a
// prompt: CRLF becomes LF, NUL and other control characters, byte order
// marks and zero-width characters are dropped, trailing blanks are cut from
// each line and runs of blank lines collapse to one.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	r := make([]rune, 0, len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\t':
			r = append(r, ch)
		case ch < 0x20, ch == 0x7f:
			// drop
		case ch == '\ufeff', ch == '\u200b', ch == '\u200c', ch == '\u200d':
			// drop
		default:
			r = append(r, ch)
		}
	}
	lines := strings.Split(string(r), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\u3000")
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
