// Package tokenizer turns document and query text into index terms. Text is
// lower-cased, split on non-alphanumeric boundaries, stop-words are dropped
// and a suffix-stripping stemmer is applied.
//
// Positions count kept tokens only, so the last position plus one is the
// document length used for proximity windows.
package tokenizer

import (
	"strings"
	"unicode"
)

var defaultStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token is one normalised term and its offset among the kept tokens.
type Token struct {
	Term     string
	Position int
}

// Analyzer holds the normalisation choices. Index and query text must go
// through the same Analyzer or terms will not match.
type Analyzer struct {
	StopWords map[string]struct{}
	Stem      bool
	// MinLength drops shorter words before stemming.
	MinLength int
}

// Default is the analyzer used by the indexer and the query parser.
var Default = &Analyzer{StopWords: defaultStopWords, Stem: true, MinLength: 2}

// Tokenize runs Default over text.
func Tokenize(text string) []Token {
	return Default.Tokenize(text)
}

func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (a *Analyzer) Tokenize(text string) []Token {
	words := splitWords(text)
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		term, ok := a.normalize(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: len(tokens)})
	}
	return tokens
}

// Term normalises a single query word the way Tokenize would, keeping the
// first word when punctuation splits it. It reports false when nothing
// would be indexed.
func (a *Analyzer) Term(word string) (string, bool) {
	words := splitWords(word)
	if len(words) == 0 {
		return "", false
	}
	return a.normalize(words[0])
}

func (a *Analyzer) normalize(word string) (string, bool) {
	if len(word) < a.MinLength {
		return "", false
	}
	if _, stop := a.StopWords[word]; stop {
		return "", false
	}
	if !a.Stem {
		return word, true
	}
	stemmed := stem(word)
	return stemmed, stemmed != ""
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

// rules are tried in order; the first matching suffix whose result keeps
// minLen characters wins.
var rules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

func stem(word string) string {
	for _, rule := range rules {
		if !strings.HasSuffix(word, rule.suffix) {
			continue
		}
		if stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement; len(stemmed) >= rule.minLen {
			return stemmed
		}
	}
	return word
}
