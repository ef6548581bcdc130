package extract

import (
	"regexp"
	"strings"
	"sync"
)

// Block returns the text strictly between the first start marker and the
// first end marker after it, or "" when the markers are not found in order.
func Block(text, start, end string) string {
	i := strings.Index(text, start)
	if i < 0 {
		return ""
	}
	rest := text[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return ""
	}
	return rest[:j]
}

// Tagged reads a block written as <<<TAG>>> ... <<<END_TAG>>>, trimmed.
func Tagged(text, tag string) string {
	return strings.TrimSpace(Block(text, "<<<"+tag+">>>", "<<<END_"+tag+">>>"))
}

var (
	fenceMu    sync.Mutex
	fenceCache = map[string]*regexp.Regexp{}
)

func fencePattern(tag string) *regexp.Regexp {
	fenceMu.Lock()
	defer fenceMu.Unlock()
	if re, ok := fenceCache[tag]; ok {
		return re
	}
	re := regexp.MustCompile("(?is)```" + regexp.QuoteMeta(tag) + "[ \\t]*\\r?\\n?(.*?)```")
	fenceCache[tag] = re
	return re
}

// FencedBlock returns the trimmed body of the first ```tag fence. The tag
// matches case-insensitively.
func FencedBlock(text, tag string) string {
	m := fencePattern(tag).FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
