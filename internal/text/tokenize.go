// Package text normalises free text into the terms used for relevance scoring.
//
// Tokenisation is intentionally simple: lower-case, then split on single
// spaces. Punctuation stays attached ("beach!" and "beach" are different
// terms) and repeated spaces yield empty tokens.
package text

import "strings"

// Tokenize lower-cases s and splits it on the space character.
// Tokenize("") returns a single empty token.
func Tokenize(s string) []string {
	return strings.Split(strings.ToLower(s), " ")
}

// RemoveStopwords returns the tokens that are not stopwords, preserving order.
// The input slice is not modified.
func RemoveStopwords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !IsStopword(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// TokenizeAndRemoveStopwords composes Tokenize and RemoveStopwords.
func TokenizeAndRemoveStopwords(s string) []string {
	return RemoveStopwords(Tokenize(s))
}

// Significant drops empty tokens. An empty query tokenises to [""], which
// must score as an empty token set rather than match empty fields.
func Significant(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Terms is the full pipeline used for event fields and queries:
// tokenise, drop stopwords, drop empty tokens.
func Terms(s string) []string {
	return Significant(TokenizeAndRemoveStopwords(s))
}
