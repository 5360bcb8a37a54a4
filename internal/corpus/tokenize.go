package corpus

import (
	"strings"
	"unicode"
)

// MinTokenLength is the shortest token kept by Tokenize.
const MinTokenLength = 3

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "from": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"it": {}, "its": {}, "as": {}, "not": {}, "can": {}, "will": {}, "would": {}, "should": {},
	"could": {}, "has": {}, "have": {}, "had": {}, "into": {}, "than": {}, "then": {}, "there": {},
	"their": {}, "them": {}, "they": {}, "you": {}, "your": {}, "our": {}, "all": {}, "any": {},
	"how": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "does": {},
}

// IsStopWord reports whether the lower-case token is ignored by the index.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenize lower-cases text, splits on non-word characters and drops short
// tokens and stop words. Order is preserved so positions can be recorded.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !isWordRune(r) })
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < MinTokenLength || IsStopWord(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
