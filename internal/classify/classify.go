// Package classify assigns a content class to request payloads. The class
// drives backend priority and default model selection.
package classify

import (
	"regexp"
	"unicode/utf8"
)

type ContentClass string

const (
	General ContentClass = "general"
	Code    ContentClass = "code"
	Summary ContentClass = "summary"
)

// Texts longer than this many characters with a summarization cue are
// classed as Summary. Counted in runes, not bytes, so non-Latin text is not
// penalized.
const summaryMinLength = 1000

// Structural patterns indicative of source code, tried in order.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(def|class|function)\s+\w+\s*\(.*\)\s*(\{|:)`),
	regexp.MustCompile(`(if|for|while)\s*\(.*\)\s*(\{|:)`),
	regexp.MustCompile(`(var|let|const|int|float|double|string|bool)\s+\w+\s*=`),
	regexp.MustCompile(`import\s+[\w\s{},.]+\s+from`),
	regexp.MustCompile(`#include\s+[<"].*[>"]`),
	regexp.MustCompile(`public\s+(static\s+)?(class|void|int|String)`),
	regexp.MustCompile(`<\w+(\s+\w+=".*")*>.*</\w+>`),
}

var summaryCues = regexp.MustCompile(`(?i)(summarize|summary|кратко|резюме|тезисы|TL;DR|TLDR)`)

// Detect classifies text. First match wins; the function is deterministic
// and side-effect free.
func Detect(text string) ContentClass {
	for _, p := range codePatterns {
		if p.MatchString(text) {
			return Code
		}
	}

	if utf8.RuneCountInString(text) > summaryMinLength && summaryCues.MatchString(text) {
		return Summary
	}

	return General
}
