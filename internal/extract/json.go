// Package extract recovers structured data from free-form model output.
// Nothing in this package returns an error: callers receive an empty or
// Unparsable result and apply their own defaults.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedJSONPattern = regexp.MustCompile("(?is)```(?:json)?[ \\t]*\\r?\\n?(.*?)```")
	spanPattern       = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
)

// Result is the outcome of a JSON extraction: either Parsed with a decoded
// value or Unparsable.
type Result struct {
	value  any
	parsed bool
}

// Unparsable is the zero Result.
var Unparsable = Result{}

func Parsed(v any) Result { return Result{value: v, parsed: true} }

func (r Result) IsParsed() bool { return r.parsed }

func (r Result) Value() any { return r.value }

// Object returns the value when it is a JSON object.
func (r Result) Object() (map[string]any, bool) {
	if !r.parsed {
		return nil, false
	}
	m, ok := r.value.(map[string]any)
	return m, ok
}

// Array returns the value when it is a JSON array.
func (r Result) Array() ([]any, bool) {
	if !r.parsed {
		return nil, false
	}
	a, ok := r.value.([]any)
	return a, ok
}

// JSON tries, in order: the whole text, every fenced code block, and the
// outermost {...} or [...] span. The first candidate that decodes wins.
func JSON(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Unparsable
	}
	if v, ok := decode(text); ok {
		return Parsed(v)
	}
	for _, m := range fencedJSONPattern.FindAllStringSubmatch(text, -1) {
		if v, ok := decode(strings.TrimSpace(m[1])); ok {
			return Parsed(v)
		}
	}
	if m := spanPattern.FindString(text); m != "" {
		if v, ok := decode(m); ok {
			return Parsed(v)
		}
	}
	return Unparsable
}

func decode(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
