package genai

import (
	"github.com/reviewradar/review-radar/internal/config"
	"github.com/reviewradar/review-radar/internal/fetch"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
)

// FromConfig builds the provider rotation in fixed preference order:
// Gemini, then Groq, then OpenRouter. Providers without an API key are
// left out; an empty rotation still constructs and fails at Generate.
func FromConfig(cfg config.GenAIConfig, client *fetch.Client, log *logger.Logger) *Rotation {
	var providers []Provider

	if cfg.GeminiAPIKey != "" {
		providers = append(providers, NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, client))
	}
	if cfg.GroqAPIKey != "" {
		providers = append(providers, NewGroq(cfg.GroqAPIKey, cfg.GroqModel, client))
	}
	if cfg.OpenRouterAPIKey != "" {
		providers = append(providers, NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, client))
	}

	return NewRotation(providers, log)
}
