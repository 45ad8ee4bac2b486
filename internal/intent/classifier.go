// Package intent decides whether an utterance expresses a commitment to enroll.
package intent

import (
	"strings"
	"unicode"
)

// Tier names the rule set that produced a decision.
type Tier string

const (
	TierNone   Tier = ""
	TierStrong Tier = "strong_phrase"
	TierWeak   Tier = "weak_combination"
)

// strongPhrases are high-precision commitments, matched as substrings of the lowercased utterance.
var strongPhrases = []string{
	"i want to enroll",
	"i want to register",
	"i want to sign up",
	"i want to join the",
	"i'd like to enroll",
	"i would like to enroll",
	"i'd like to register",
	"i would like to register",
	"how do i register",
	"how do i enroll",
	"how can i enroll",
	"how can i register",
	"sign me up",
	"enroll me",
	"register me",
	"ready to enroll",
	"ready to register",
	"fill enrollment",
	"fill the enrollment",
	"fill out the enrollment",
	"enrollment form",
	"registration form",
	"reserve my spot",
	"reserve a spot",
	"book my seat",
	"book a seat",
	"pay the fee",
	"pay fee",
}

var (
	actionWords = map[string]bool{"take": true, "join": true, "start": true, "begin": true, "do": true}
	courseNouns = map[string]bool{"course": true, "bootcamp": true, "program": true, "training": true}
	infoWords   = map[string]bool{
		"what": true, "how": true, "when": true, "where": true, "why": true,
		"explain": true, "about": true,
	}
	infoPhrases = []string{"tell me"}
)

// Result explains a classification.
type Result struct {
	Enroll bool   `json:"enroll"`
	Tier   Tier   `json:"tier,omitempty"`
	Match  string `json:"match,omitempty"`
}

// Classifier evaluates enrollment intent. The zero value uses only the strong-phrase tier.
type Classifier struct {
	weakTier bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithWeakTier enables the action-word plus course-noun heuristic with informational-question
// suppression. It trades precision for recall.
func WithWeakTier(enabled bool) Option {
	return func(c *Classifier) {
		c.weakTier = enabled
	}
}

// New creates a classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WeakTier reports whether the weak-combination tier is active.
func (c *Classifier) WeakTier() bool {
	return c != nil && c.weakTier
}

// Classify reports whether the utterance signals intent to enroll.
func (c *Classifier) Classify(utterance string) bool {
	return c.Explain(utterance).Enroll
}

// Explain classifies the utterance and reports which rule fired.
func (c *Classifier) Explain(utterance string) Result {
	lower := strings.ToLower(utterance)

	for _, phrase := range strongPhrases {
		if strings.Contains(lower, phrase) {
			return Result{Enroll: true, Tier: TierStrong, Match: phrase}
		}
	}

	if !c.WeakTier() {
		return Result{}
	}

	words := tokenize(lower)
	action := firstIn(words, actionWords)
	noun := firstIn(words, courseNouns)
	if action == "" || noun == "" {
		return Result{}
	}
	if firstIn(words, infoWords) != "" {
		return Result{}
	}
	for _, p := range infoPhrases {
		if strings.Contains(lower, p) {
			return Result{}
		}
	}
	return Result{Enroll: true, Tier: TierWeak, Match: action + "+" + noun}
}

// Classify runs the default strong-phrase classifier.
func Classify(utterance string) bool {
	return New().Classify(utterance)
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func firstIn(words []string, set map[string]bool) string {
	for _, w := range words {
		if set[w] {
			return w
		}
	}
	return ""
}
