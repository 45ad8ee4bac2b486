package store

import (
	"strings"
	"unicode"
)

// stopwords are dropped from search queries so that FTS5 matches on content words.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"will": true, "would": true, "could": true, "should": true, "can": true,
	"not": true, "and": true, "or": true, "but": true, "if": true,
	"so": true, "as": true, "at": true, "by": true, "for": true,
	"from": true, "in": true, "into": true, "of": true, "on": true,
	"to": true, "with": true, "about": true, "it": true, "its": true,
	"this": true, "that": true, "what": true, "which": true, "who": true,
	"how": true, "when": true, "where": true, "why": true, "you": true,
	"me": true, "i": true, "my": true, "your": true, "we": true,
	"they": true, "us": true, "tell": true, "please": true, "there": true,
}

// matchExpression turns free text into an FTS5 MATCH expression: unique non-stopword tokens,
// each quoted, joined with OR. It returns "" when nothing searchable remains.
func matchExpression(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var terms []string
	for _, w := range words {
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}
