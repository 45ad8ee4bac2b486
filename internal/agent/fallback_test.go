package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asmaf9056/afatimachtbot36/internal/catalog"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func TestFallbackResponderTopics(t *testing.T) {
	r := NewFallbackResponder(defaultCatalog(t).Fallback)

	tests := []struct {
		message string
		topic   string
	}{
		{"How much does the GenAI bootcamp cost?", "pricing"},
		{"what are the FEES", "pricing"},
		{"What is the duration of the Data Science Bootcamp?", "duration"},
		{"how long is it", "duration"},
		{"Do I need any prerequisites?", "prerequisites"},
		{"will I get a certificate", "certification"},
		{"does it help me land a job", "careers"},
		{"what's your email", "contact"},
		{"Where are you located?", "location"},
		{"hello there", "greeting"},
		{"how can I register", "enrollment_howto"},
		{"tell me something", DefaultTopic},
		{"", DefaultTopic},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			text, topic := r.Respond(tt.message)
			assert.Equal(t, tt.topic, topic)
			assert.NotEmpty(t, text)
		})
	}
}

func TestFallbackResponderFirstMatchWins(t *testing.T) {
	r := NewFallbackResponder(catalog.Fallback{
		Topics: []catalog.Topic{
			{Name: "first", Keywords: []string{"fee"}, Response: "one"},
			{Name: "second", Keywords: []string{"certificate"}, Response: "two"},
		},
		Default: "menu",
	})

	text, topic := r.Respond("certificate fee")
	assert.Equal(t, "first", topic)
	assert.Equal(t, "one", text)
}

func TestFallbackResponderWholeWords(t *testing.T) {
	r := NewFallbackResponder(catalog.Fallback{
		Topics: []catalog.Topic{
			{Name: "greeting", Keywords: []string{"hi"}, Response: "hello"},
			{Name: "duration", Keywords: []string{"how long"}, Response: "weeks"},
		},
		Default: "menu",
	})

	_, topic := r.Respond("this is about machine learning")
	assert.Equal(t, DefaultTopic, topic, "hi inside another word must not match")

	_, topic = r.Respond("long how")
	assert.Equal(t, DefaultTopic, topic, "phrase words must be contiguous and ordered")

	_, topic = r.Respond("So, how long?")
	assert.Equal(t, "duration", topic)
}

func TestFallbackResponderDefault(t *testing.T) {
	c := defaultCatalog(t)
	text, topic := NewFallbackResponder(c.Fallback).Respond("qwerty")
	assert.Equal(t, DefaultTopic, topic)
	assert.Equal(t, c.Fallback.Default, text)
}
