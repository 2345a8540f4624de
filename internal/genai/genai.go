// Package genai generates product review analyses through a rotation of
// hosted model providers.
package genai

import (
	"context"
	"fmt"

	apperrors "github.com/reviewradar/review-radar/internal/pkg/errors"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
	"github.com/reviewradar/review-radar/internal/report"
)

// promptTemplate asks for an objective markdown report plus a fenced JSON
// tail the report parser extracts structured fields from. Empty context is
// allowed; the model then answers from general knowledge.
const promptTemplate = `제품 '%s'에 대한 실사용자들의 진짜 장단점을 요약해줘. 인터넷 광고글은 무시하고, 실제 불만사항과 칭찬을 객관적으로 분석해서 1~10점 평점과 함께 리포트로 써줘.

리포트 마지막에 아래 형식의 JSON 코드 블록을 추가해줘:
` + "```json\n" + `{"pros": ["..."], "cons": ["..."], "rating": 0}
` + "```\n" + `
데이터:
%s`

// Provider produces a report from a product name and filtered context.
type Provider interface {
	// Generate produces a report. reviewContext may be empty.
	Generate(ctx context.Context, product, reviewContext string) (*report.Report, error)

	// Name identifies the provider in logs, events, and reports.
	Name() string
}

// BuildPrompt renders the fixed prompt for a product and context block.
func BuildPrompt(product, reviewContext string) string {
	return fmt.Sprintf(promptTemplate, product, reviewContext)
}

// Rotation tries providers in order and returns the first success.
type Rotation struct {
	providers []Provider
	log       *logger.Logger

	// onAttempt observes each provider call for metrics. May be nil.
	onAttempt func(provider string, err error)
}

// NewRotation creates a provider rotation. Order matters: the first
// provider is preferred and the rest are fallbacks.
func NewRotation(providers []Provider, log *logger.Logger) *Rotation {
	return &Rotation{
		providers: providers,
		log:       log.WithComponent("genai"),
	}
}

// OnAttempt registers an observer for provider attempts.
func (r *Rotation) OnAttempt(fn func(provider string, err error)) {
	r.onAttempt = fn
}

// Pinger is implemented by providers that can cheaply report availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports per-provider availability for status probes. Providers
// without a Ping are reported as ok by virtue of being configured.
func (r *Rotation) Health(ctx context.Context) map[string]string {
	out := make(map[string]string, len(r.providers))
	for _, p := range r.providers {
		pinger, ok := p.(Pinger)
		if !ok {
			out[p.Name()] = "ok"
			continue
		}
		if err := pinger.Ping(ctx); err != nil {
			out[p.Name()] = "unavailable: " + err.Error()
		} else {
			out[p.Name()] = "ok"
		}
	}
	return out
}

// Providers returns the configured provider names in rotation order.
func (r *Rotation) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Generate tries each provider in order. Context cancellation stops the
// rotation; exhausting all providers is an upstream error.
func (r *Rotation) Generate(ctx context.Context, product, reviewContext string) (*report.Report, error) {
	if len(r.providers) == 0 {
		return nil, apperrors.UpstreamError("genai", fmt.Errorf("no providers configured"))
	}

	var lastErr error
	for _, p := range r.providers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		rep, err := p.Generate(ctx, product, reviewContext)
		if r.onAttempt != nil {
			r.onAttempt(p.Name(), err)
		}
		if err == nil {
			r.log.Info("generation succeeded", "provider", p.Name())
			return rep, nil
		}

		lastErr = err
		r.log.Warn("provider failed, rotating", "provider", p.Name(), "error", err.Error())
	}

	return nil, apperrors.UpstreamError("genai", fmt.Errorf("all providers failed: %w", lastErr))
}
