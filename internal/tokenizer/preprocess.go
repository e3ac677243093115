package tokenizer

import (
	"regexp"
	"strings"
)

var (
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentPattern  = regexp.MustCompile(`//[^\n]*`)
	hashCommentPattern  = regexp.MustCompile(`#[^\n]*`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// Preprocess strips comments from code text and collapses whitespace runs to
// single spaces. It is applied to chunk content before index-time
// tokenization and to expanded queries before search.
func Preprocess(text string) string {
	text = blockCommentPattern.ReplaceAllString(text, " ")
	text = lineCommentPattern.ReplaceAllString(text, " ")
	text = hashCommentPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
