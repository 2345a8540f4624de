package genai

import (
	"testing"

	"github.com/reviewradar/review-radar/internal/config"
	"github.com/reviewradar/review-radar/internal/fetch"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
)

func TestFromConfigOrder(t *testing.T) {
	client := fetch.New(fetch.DefaultConfig())
	defer client.Close()

	r := FromConfig(config.GenAIConfig{
		GeminiAPIKey:     "a",
		GroqAPIKey:       "b",
		OpenRouterAPIKey: "c",
	}, client, logger.Default())

	want := []string{"gemini", "groq", "openrouter"}
	got := r.Providers()
	if len(got) != len(want) {
		t.Fatalf("providers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("providers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFromConfigSkipsKeyless(t *testing.T) {
	client := fetch.New(fetch.DefaultConfig())
	defer client.Close()

	r := FromConfig(config.GenAIConfig{GroqAPIKey: "b"}, client, logger.Default())

	got := r.Providers()
	if len(got) != 1 || got[0] != "groq" {
		t.Errorf("providers = %v, want [groq]", got)
	}
}
