package genai

import (
	"context"
	"fmt"

	apperrors "github.com/reviewradar/review-radar/internal/pkg/errors"
	"github.com/reviewradar/review-radar/internal/fetch"
	"github.com/reviewradar/review-radar/internal/report"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Gemini calls the Google generateContent API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *fetch.Client
}

// NewGemini creates a Gemini provider.
func NewGemini(apiKey, model string, client *fetch.Client) *Gemini {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  client,
	}
}

// Name implements Provider.
func (g *Gemini) Name() string { return "gemini" }

// Ping reports whether a key is configured and the endpoint is reachable.
func (g *Gemini) Ping(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("no API key configured")
	}
	return g.client.Head(ctx, g.baseURL)
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate implements Provider.
func (g *Gemini) Generate(ctx context.Context, product, reviewContext string) (*report.Report, error) {
	if g.apiKey == "" {
		return nil, apperrors.UpstreamError(g.Name(), fmt.Errorf("no API key configured"))
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: BuildPrompt(product, reviewContext)}}},
		},
	}

	var resp geminiResponse
	if err := g.client.PostJSON(ctx, url, nil, req, &resp); err != nil {
		return nil, apperrors.UpstreamError(g.Name(), err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, apperrors.UpstreamError(g.Name(), fmt.Errorf("empty response"))
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return nil, apperrors.UpstreamError(g.Name(), fmt.Errorf("empty response text"))
	}

	return report.New(text, "Gemini ("+g.model+")"), nil
}
