package tokenizer

import "strings"

// Options controls the tokenization pipeline. The zero value disables every
// stage; use DefaultOptions for the engine defaults. Options are persisted in
// BM25 snapshots so a loaded index tokenizes queries exactly as it tokenized
// its documents.
type Options struct {
	Lowercase       bool `json:"lowercase"`
	CodeSplit       bool `json:"codeSplit"`
	RemoveStopwords bool `json:"removeStopwords"`
	Stem            bool `json:"stem"`
}

// DefaultOptions returns the options used for both indexing and querying.
func DefaultOptions() Options {
	return Options{
		Lowercase:       true,
		CodeSplit:       true,
		RemoveStopwords: true,
		Stem:            true,
	}
}

// codeSplitChars are replaced with spaces before whitespace splitting so that
// identifiers survive punctuation and operators.
const codeSplitChars = "{}()[];:,.-+*/%=<>!&|^~"

// stopwords is the fixed English stopword set. Tokens in this set are dropped
// when Options.RemoveStopwords is enabled. "are" is deliberately absent: it
// survives tokenization.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "will": {}, "with": {},
}

// Tokenize produces the ordered term sequence for text under opts. Stages run
// in a fixed order: lowercase, code-split, whitespace split, stopword
// removal, stemming.
func Tokenize(text string, opts Options) []string {
	if opts.Lowercase {
		text = strings.ToLower(text)
	}

	if opts.CodeSplit {
		text = splitCode(text)
	}

	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if opts.RemoveStopwords {
			if _, stop := stopwords[tok]; stop {
				continue
			}
		}
		if opts.Stem {
			tok = stem(tok)
		}
		tokens = append(tokens, tok)
	}

	return tokens
}

// splitCode replaces brackets, punctuation and operator characters with
// spaces.
func splitCode(text string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(codeSplitChars, r) {
			return ' '
		}
		return r
	}, text)
}

// stem applies the minimal suffix stripper. Rules are checked in a fixed
// order and exactly one fires per token; tokens of length <= 3 pass through
// unchanged.
func stem(tok string) string {
	if len(tok) <= 3 {
		return tok
	}

	switch {
	case strings.HasSuffix(tok, "ing"):
		return tok[:len(tok)-3]
	case strings.HasSuffix(tok, "ed"):
		return tok[:len(tok)-2]
	case strings.HasSuffix(tok, "ly"):
		return tok[:len(tok)-2]
	case strings.HasSuffix(tok, "ment"):
		return tok[:len(tok)-4]
	case strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss"):
		return tok[:len(tok)-1]
	}

	return tok
}

// IsStopword reports whether tok is in the fixed stopword set.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}
