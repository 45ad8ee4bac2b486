package agent

import (
	"strings"
	"unicode"

	"github.com/asmaf9056/afatimachtbot36/internal/catalog"
)

// DefaultTopic is reported when no fallback keyword matched.
const DefaultTopic = "default"

type fallbackTopic struct {
	name     string
	keywords [][]string
	response string
}

// FallbackResponder answers from an ordered keyword table. The first topic with a keyword present
// in the message wins; keywords match whole words only.
type FallbackResponder struct {
	topics []fallbackTopic
	def    string
}

// NewFallbackResponder compiles the catalog's fallback table.
func NewFallbackResponder(fb catalog.Fallback) *FallbackResponder {
	r := &FallbackResponder{def: fb.Default}
	for _, t := range fb.Topics {
		ft := fallbackTopic{name: t.Name, response: t.Response}
		for _, kw := range t.Keywords {
			if ws := words(kw); len(ws) > 0 {
				ft.keywords = append(ft.keywords, ws)
			}
		}
		r.topics = append(r.topics, ft)
	}
	return r
}

// Respond returns the canned response for message and the topic that produced it.
func (r *FallbackResponder) Respond(message string) (text, topic string) {
	msg := words(message)
	for _, t := range r.topics {
		for _, kw := range t.keywords {
			if containsSeq(msg, kw) {
				return t.response, t.name
			}
		}
	}
	return r.def, DefaultTopic
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// containsSeq reports whether needle occurs as a contiguous run in haystack.
func containsSeq(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, w := range needle {
			if haystack[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}
