package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

const (
	defaultOpenAIBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenAIModel   = "openai/gpt-4o-mini"
)

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint (OpenRouter by default).
type OpenAICompleter struct {
	client      *resty.Client
	model       string
	temperature float64
}

var _ Completer = (*OpenAICompleter)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAICompleter creates an OpenAI-compatible client from cfg.
func NewOpenAICompleter(cfg Config) *OpenAICompleter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	model := cfg.ModelName
	if model == "" || strings.HasPrefix(model, "gemini-") {
		model = defaultOpenAIModel
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetAuthToken(cfg.OpenRouterAPIKey).
		SetHeader("User-Agent", "Datacrumbs-Widget/1.0")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &OpenAICompleter{client: client, model: model, temperature: cfg.Temperature}
}

// Name returns the provider name.
func (o *OpenAICompleter) Name() string { return ProviderOpenAI }

// Complete sends the preamble as the system message followed by the transcript.
func (o *OpenAICompleter) Complete(ctx context.Context, preamble string, turns []domain.Turn) (string, error) {
	req := chatRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages:    make([]chatMessage, 0, len(turns)+1),
	}
	req.Messages = append(req.Messages, chatMessage{Role: "system", Content: preamble})
	for _, t := range turns {
		req.Messages = append(req.Messages, chatMessage{Role: string(t.Role), Content: t.Text})
	}

	var result chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return "", remoteError(ProviderOpenAI, 0, err)
	}
	if resp.IsError() {
		return "", remoteError(ProviderOpenAI, resp.StatusCode(), errors.New(strings.TrimSpace(resp.String())))
	}
	if result.Error != nil {
		return "", remoteError(ProviderOpenAI, resp.StatusCode(), errors.New(result.Error.Message))
	}
	if len(result.Choices) == 0 {
		return "", remoteError(ProviderOpenAI, resp.StatusCode(), errors.New("no choices returned"))
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", remoteError(ProviderOpenAI, resp.StatusCode(), errors.New("empty completion"))
	}
	return text, nil
}
