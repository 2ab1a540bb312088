package helpers

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "their": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "which": {}, "will": {}, "with": {}, "you": {},
	"your": {}, "not": {}, "can": {}, "they": {}, "than": {}, "then": {},
	"there": {}, "these": {}, "those": {}, "we": {}, "what": {}, "when": {},
	"where": {}, "how": {}, "why": {}, "also": {}, "more": {}, "most": {},
	"other": {}, "some": {}, "such": {}, "only": {}, "over": {}, "same": {},
	"so": {}, "about": {}, "after": {}, "before": {}, "between": {},
	"each": {}, "all": {}, "any": {}, "both": {}, "very": {}, "do": {},
	"does": {}, "did": {}, "been": {}, "being": {}, "having": {}, "if": {},
	"because": {}, "while": {}, "during": {}, "out": {}, "up": {}, "down": {},
}

// Tokenize lowercases s and splits it on non-alphanumeric runes. Tokens
// shorter than two runes are dropped.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// IsStopword reports whether w carries no topical signal.
func IsStopword(w string) bool {
	_, ok := stopwords[strings.ToLower(w)]
	return ok
}

// SignificantTokens tokenizes s and drops stopwords and pure numbers, which
// keeps quantities and years out of subject identity.
func SignificantTokens(s string) []string {
	toks := Tokenize(s)
	out := toks[:0]
	for _, tok := range toks {
		if IsStopword(tok) || isNumeric(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// TermFreq builds a normalised term-frequency vector over the tokens of s.
func TermFreq(s string) map[string]float64 {
	toks := Tokenize(s)
	if len(toks) == 0 {
		return nil
	}
	tf := make(map[string]float64, len(toks))
	for _, tok := range toks {
		tf[tok]++
	}
	n := float64(len(toks))
	for tok := range tf {
		tf[tok] /= n
	}
	return tf
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
