package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiCompleter calls the Generative Language generateContent endpoint.
type GeminiCompleter struct {
	client      *resty.Client
	apiKey      string
	model       string
	temperature float64
}

var _ Completer = (*GeminiCompleter)(nil)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// NewGeminiCompleter creates a Gemini client from cfg.
func NewGeminiCompleter(cfg Config) *GeminiCompleter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultGeminiBaseURL
	}
	model := cfg.ModelName
	if model == "" {
		model = "gemini-1.5-pro"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetHeader("User-Agent", "Datacrumbs-Widget/1.0")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &GeminiCompleter{
		client:      client,
		apiKey:      cfg.GoogleAPIKey,
		model:       model,
		temperature: cfg.Temperature,
	}
}

// Name returns the provider name.
func (g *GeminiCompleter) Name() string { return ProviderGemini }

// Complete sends the preamble as the system instruction and the transcript as alternating contents.
func (g *GeminiCompleter) Complete(ctx context.Context, preamble string, turns []domain.Turn) (string, error) {
	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: preamble}}},
		Contents:          make([]geminiContent, 0, len(turns)),
	}
	req.GenerationConfig.Temperature = g.temperature
	for _, t := range turns {
		role := "user"
		if t.Role == domain.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: t.Text}}})
	}

	var result geminiResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", g.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&result).
		Post(fmt.Sprintf("/models/%s:generateContent", g.model))
	if err != nil {
		return "", remoteError(ProviderGemini, 0, err)
	}
	if resp.IsError() {
		return "", remoteError(ProviderGemini, resp.StatusCode(), errors.New(strings.TrimSpace(resp.String())))
	}
	if result.PromptFeedback.BlockReason != "" {
		return "", remoteError(ProviderGemini, resp.StatusCode(), fmt.Errorf("prompt blocked: %s", result.PromptFeedback.BlockReason))
	}

	var b strings.Builder
	if len(result.Candidates) > 0 {
		for _, p := range result.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", remoteError(ProviderGemini, resp.StatusCode(), errors.New("empty completion"))
	}
	return text, nil
}
