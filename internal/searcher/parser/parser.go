// Package parser turns a raw query string into a QueryPlan. Besides the
// boolean AND/OR/NOT words it understands term weights (term^2.5), synonym
// groups ({car automobile}) and the window operators #1(a b), #owN(a b) and
// #uwN(a b). Window operators produce derived terms: they take part in
// retrieval but never in proximity scoring.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/tokenizer"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryOR {
		return "OR"
	}
	return "AND"
}

// Kind tells real terms from the derived terms window operators create.
type Kind int

const (
	KindBase Kind = iota
	// KindWindow is #1(...), an exact phrase.
	KindWindow
	KindOrderedWindow
	KindUnorderedWindow
)

// Term is one query term. For derived terms Text is the canonical operator
// form, e.g. "#uw8(brown fox)", and Operands lists the normalised words.
type Term struct {
	Text     string
	Weight   float64
	Kind     Kind
	Width    int
	Operands []string
	Synonyms []string
}

// Derived reports whether the term was produced by a window operator.
func (t Term) Derived() bool {
	return t.Kind != KindBase
}

// Alternatives returns the term followed by its synonyms.
func (t Term) Alternatives() []string {
	return append([]string{t.Text}, t.Synonyms...)
}

type QueryPlan struct {
	Terms        []Term
	Type         QueryType
	ExcludeTerms []string
	RawQuery     string
}

var derivedTerm = regexp.MustCompile(`^.*#(\d|uw\d|ow\d).*`)

// IsDerivedTerm reports whether a serialised term identifier names a window
// operator rather than a word.
func IsDerivedTerm(term string) bool {
	return derivedTerm.MatchString(term)
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]Term, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryAND,
		RawQuery:     query,
	}
	excludeNext := false
	for _, tok := range scan(query) {
		switch strings.ToUpper(tok) {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		term, ok := parseTerm(tok)
		if !ok {
			continue
		}
		if excludeNext {
			excludeNext = false
			if term.Derived() {
				plan.ExcludeTerms = append(plan.ExcludeTerms, term.Operands...)
			} else {
				plan.ExcludeTerms = append(plan.ExcludeTerms, term.Alternatives()...)
			}
			continue
		}
		plan.Terms = append(plan.Terms, term)
	}
	return plan
}

// scan splits on whitespace, keeping {...} groups and #op(...) operators
// whole together with any ^weight suffix.
func scan(query string) []string {
	var tokens []string
	var cur strings.Builder
	depth := 0
	for _, r := range query {
		switch {
		case r == '{' || r == '(':
			depth++
		case (r == '}' || r == ')') && depth > 0:
			depth--
		case depth == 0 && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func parseTerm(tok string) (Term, bool) {
	body, weight := splitWeight(tok)
	switch {
	case strings.HasPrefix(body, "{"):
		words := normalizeAll(strings.Fields(strings.Trim(body, "{}")))
		if len(words) == 0 {
			return Term{}, false
		}
		return Term{Text: words[0], Synonyms: words[1:], Weight: weight, Kind: KindBase}, true
	case strings.HasPrefix(body, "#"):
		return parseWindow(body, weight)
	default:
		word, ok := tokenizer.Default.Term(body)
		if !ok {
			return Term{}, false
		}
		return Term{Text: word, Weight: weight, Kind: KindBase}, true
	}
}

// parseWindow reads #1(a b), #owN(a b) and #uwN(a b). Malformed operators
// are dropped.
func parseWindow(body string, weight float64) (Term, bool) {
	open := strings.IndexByte(body, '(')
	if open < 0 || !strings.HasSuffix(body, ")") {
		return Term{}, false
	}
	op := body[1:open]
	operands := normalizeAll(strings.Fields(body[open+1 : len(body)-1]))
	if len(operands) == 0 {
		return Term{}, false
	}

	var kind Kind
	var prefix string
	switch {
	case strings.HasPrefix(op, "uw"):
		kind, prefix = KindUnorderedWindow, "uw"
	case strings.HasPrefix(op, "ow"):
		kind, prefix = KindOrderedWindow, "ow"
	default:
		kind = KindWindow
	}
	width, err := strconv.Atoi(op[len(prefix):])
	if err != nil || width < 1 {
		return Term{}, false
	}
	if kind == KindWindow && width != 1 {
		kind = KindOrderedWindow
		prefix = "ow"
	}
	return Term{
		Text:     fmt.Sprintf("#%s%d(%s)", prefix, width, strings.Join(operands, " ")),
		Weight:   weight,
		Kind:     kind,
		Width:    width,
		Operands: operands,
	}, true
}

func splitWeight(tok string) (string, float64) {
	i := strings.LastIndexByte(tok, '^')
	if i <= 0 {
		return tok, 1
	}
	w, err := strconv.ParseFloat(tok[i+1:], 64)
	if err != nil || w <= 0 {
		return tok[:i], 1
	}
	return tok[:i], w
}

func normalizeAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if t, ok := tokenizer.Default.Term(w); ok {
			out = append(out, t)
		}
	}
	return out
}

// DependenceTerms returns the real terms in phrase order. A term repeated in
// the query appears once, at its first position, with the weights of every
// occurrence summed. Derived terms are excluded.
func (p *QueryPlan) DependenceTerms() []Term {
	out := make([]Term, 0, len(p.Terms))
	seen := make(map[string]int, len(p.Terms))
	for _, t := range p.Terms {
		if t.Derived() || IsDerivedTerm(t.Text) {
			continue
		}
		if i, ok := seen[t.Text]; ok {
			out[i].Weight += t.Weight
			continue
		}
		seen[t.Text] = len(out)
		out = append(out, t)
	}
	return out
}

// RetrievalGroups returns one group of alternatives per required word: a
// base term with its synonyms, or each operand of a window on its own.
func (p *QueryPlan) RetrievalGroups() [][]string {
	groups := make([][]string, 0, len(p.Terms))
	for _, t := range p.Terms {
		if t.Derived() {
			for _, op := range t.Operands {
				groups = append(groups, []string{op})
			}
			continue
		}
		groups = append(groups, t.Alternatives())
	}
	return groups
}

// Weight returns the summed weight of every term whose text or synonyms
// include word, or 0.
func (p *QueryPlan) Weight(word string) float64 {
	total := 0.0
	for _, t := range p.Terms {
		if t.Derived() {
			continue
		}
		for _, alt := range t.Alternatives() {
			if alt == word {
				total += t.Weight
				break
			}
		}
	}
	return total
}

// String is a canonical form of the plan. Term order is kept since it
// changes sequential dependence scores.
func (p *QueryPlan) String() string {
	parts := make([]string, 0, len(p.Terms))
	for _, t := range p.Terms {
		text := t.Text
		if len(t.Synonyms) > 0 {
			text = "{" + strings.Join(t.Alternatives(), " ") + "}"
		}
		parts = append(parts, text+"^"+strconv.FormatFloat(t.Weight, 'g', -1, 64))
	}
	s := p.Type.String() + "|" + strings.Join(parts, ",")
	if len(p.ExcludeTerms) > 0 {
		s += "|NOT:" + strings.Join(p.ExcludeTerms, ",")
	}
	return s
}
