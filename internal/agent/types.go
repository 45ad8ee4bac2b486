// Package agent produces assistant replies for the enrollment widget.
//
// A reply comes from the configured completion provider when it answers in time, and from the
// keyword fallback table otherwise. Callers never see a provider error.
package agent

import (
	"time"
)

// ResponseType categorizes agent replies.
type ResponseType string

const (
	// ResponseTypePattern indicates a reply from the keyword fallback table.
	ResponseTypePattern ResponseType = "pattern"
	// ResponseTypeLLM indicates a model-generated reply.
	ResponseTypeLLM ResponseType = "llm"
)

// Reply is the assistant's answer to one utterance.
type Reply struct {
	Text   string       `json:"text"`
	Source ResponseType `json:"source"`
	// Topic names the fallback topic that matched, or "default" for the menu.
	Topic string `json:"topic,omitempty"`
	// Notice is set when the fallback answered.
	Notice   string        `json:"notice,omitempty"`
	Latency  time.Duration `json:"-"`
	Err      error         `json:"-"`
	Provider string        `json:"-"`
}

// Provider names accepted by NewCompleter.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config holds agent configuration.
type Config struct {
	Provider         string
	ModelName        string
	GoogleAPIKey     string
	OpenRouterAPIKey string
	// BaseURL overrides the provider endpoint.
	BaseURL     string
	Temperature float64
	// Timeout bounds one completion call.
	Timeout time.Duration
	// BreakerFailures consecutive failures open the circuit for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
	// ContextChunks is how many indexed website chunks go into the preamble.
	ContextChunks int
}

// DefaultConfig returns default agent configuration.
func DefaultConfig() Config {
	return Config{
		Provider:        ProviderGemini,
		ModelName:       "gemini-1.5-pro",
		Temperature:     0.5,
		Timeout:         30 * time.Second,
		BreakerFailures: 3,
		BreakerCooldown: 30 * time.Second,
		ContextChunks:   4,
	}
}
