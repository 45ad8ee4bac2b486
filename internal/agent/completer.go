package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

// Completer turns an instruction preamble and the conversation so far into the next assistant message.
type Completer interface {
	Complete(ctx context.Context, preamble string, turns []domain.Turn) (string, error)
	Name() string
}

// RemoteError reports any failure of the completion provider: transport, auth, quota, timeout or
// empty output. It matches errdefs.ErrUnavailable.
type RemoteError struct {
	Provider string
	Status   int
	Err      error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s completion failed (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *RemoteError) Unwrap() []error { return []error{errdefs.ErrUnavailable, e.Err} }

func remoteError(provider string, status int, err error) error {
	return &RemoteError{Provider: provider, Status: status, Err: err}
}

// NewCompleter builds the provider named by cfg.Provider. It returns nil, nil when the provider
// is "none" or its API key is missing, which leaves the fallback table answering every turn.
func NewCompleter(cfg Config) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		if cfg.GoogleAPIKey == "" {
			return nil, nil
		}
		return NewGeminiCompleter(cfg), nil
	case ProviderOpenAI:
		if cfg.OpenRouterAPIKey == "" {
			return nil, nil
		}
		return NewOpenAICompleter(cfg), nil
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q: %w", cfg.Provider, errdefs.ErrInvalidArgument)
	}
}
