package search

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/termhelper-rag/internal/tokenizer"
)

// extAlternatives mirrors the walker's recognized extension set for matching
// filenames inside error text.
const extAlternatives = `js|jsx|ts|tsx|py|java|c|cc|cpp|cxx|h|hpp|go|rb|php|cs|scala|swift|rs|kt|kts|sh|bash|sql`

// errorCuePatterns capture the message fragment following common error
// markers; group 1 of each match is collected.
var errorCuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)error:?\s+([^:]+)`),
	regexp.MustCompile(`(?i)exception:?\s+([^:]+)`),
	regexp.MustCompile(`(?i)failed:?\s+([^:]+)`),
	regexp.MustCompile(`(?i)cannot\s+([^:]+)`),
	regexp.MustCompile(`(?i)undefined\s+([^:]+)`),
	regexp.MustCompile(`(?i)null\s+([^:]+)`),
}

var (
	stackFramePattern = regexp.MustCompile(`at\s+([\w$.]+)\s`)
	fileNamePattern   = regexp.MustCompile(`\b[\w./-]*[\w-]+\.(?:` + extAlternatives + `)\b`)
	callExprPattern   = regexp.MustCompile(`([A-Za-z0-9_]+)\(.*\)`)
	importPattern     = regexp.MustCompile(`import\s+([A-Za-z0-9_{}]+)`)
	requirePattern    = regexp.MustCompile(`require\(['"](.*)['"]\)`)
)

// Expand enriches a raw query (typically an error log) with the cues buried
// in it: error messages, stack-frame symbols, filenames, call expressions,
// imports and requires. The captured spans are appended to the original
// query and the result is run through the code preprocessor.
func Expand(query string) string {
	var cues []string

	for _, pattern := range errorCuePatterns {
		for _, m := range pattern.FindAllStringSubmatch(query, -1) {
			cues = append(cues, strings.TrimSpace(m[1]))
		}
	}

	for _, m := range stackFramePattern.FindAllStringSubmatch(query, -1) {
		cues = append(cues, m[1])
	}
	cues = append(cues, fileNamePattern.FindAllString(query, -1)...)
	for _, m := range callExprPattern.FindAllStringSubmatch(query, -1) {
		cues = append(cues, m[1])
	}
	for _, m := range importPattern.FindAllStringSubmatch(query, -1) {
		cues = append(cues, m[1])
	}
	for _, m := range requirePattern.FindAllStringSubmatch(query, -1) {
		cues = append(cues, m[1])
	}

	expanded := query
	if len(cues) > 0 {
		expanded += " " + strings.Join(cues, " ")
	}

	return tokenizer.Preprocess(expanded)
}

// MentionedFiles returns the basenames of filenames with recognized
// extensions appearing in the query.
func MentionedFiles(query string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, m := range fileNamePattern.FindAllString(query, -1) {
		names[filepath.Base(m)] = struct{}{}
	}
	return names
}
