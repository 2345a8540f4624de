package genai

import (
	"context"
	"fmt"

	apperrors "github.com/reviewradar/review-radar/internal/pkg/errors"
	"github.com/reviewradar/review-radar/internal/fetch"
	"github.com/reviewradar/review-radar/internal/report"
)

const (
	groqURL       = "https://api.groq.com/openai/v1/chat/completions"
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"
)

// ChatProvider calls an OpenAI-compatible chat completions endpoint with
// bearer authentication. Groq and OpenRouter share this wire shape.
type ChatProvider struct {
	name   string
	label  string
	url    string
	apiKey string
	model  string
	client *fetch.Client
}

// NewGroq creates a Groq provider.
func NewGroq(apiKey, model string, client *fetch.Client) *ChatProvider {
	if model == "" {
		model = "llama3-70b-8192"
	}
	return &ChatProvider{
		name:   "groq",
		label:  "Groq",
		url:    groqURL,
		apiKey: apiKey,
		model:  model,
		client: client,
	}
}

// NewOpenRouter creates an OpenRouter provider.
func NewOpenRouter(apiKey, model string, client *fetch.Client) *ChatProvider {
	if model == "" {
		model = "deepseek/deepseek-chat"
	}
	return &ChatProvider{
		name:   "openrouter",
		label:  "OpenRouter",
		url:    openRouterURL,
		apiKey: apiKey,
		model:  model,
		client: client,
	}
}

// Name implements Provider.
func (p *ChatProvider) Name() string { return p.name }

// Ping reports whether a key is configured and the endpoint is reachable.
func (p *ChatProvider) Ping(ctx context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("no API key configured")
	}
	return p.client.Head(ctx, p.url)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements Provider.
func (p *ChatProvider) Generate(ctx context.Context, product, reviewContext string) (*report.Report, error) {
	if p.apiKey == "" {
		return nil, apperrors.UpstreamError(p.name, fmt.Errorf("no API key configured"))
	}

	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: BuildPrompt(product, reviewContext)},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.url, headers, req, &resp); err != nil {
		return nil, apperrors.UpstreamError(p.name, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, apperrors.UpstreamError(p.name, fmt.Errorf("empty response"))
	}

	return report.New(resp.Choices[0].Message.Content, p.label+" ("+p.model+")"), nil
}
