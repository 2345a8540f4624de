package sources

import (
	"context"
	"fmt"
	"net/url"

	apperrors "github.com/reviewradar/review-radar/internal/pkg/errors"
	"github.com/reviewradar/review-radar/internal/fetch"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
)

// queryTemplate biases results toward hands-on reviews with pros and cons.
const queryTemplate = "%s 실사용 후기 장점 단점"

// SerperProvider searches Google via the Serper API.
type SerperProvider struct {
	apiKey      string
	endpoint    string
	resultCount int
	client      *fetch.Client
	log         *logger.Logger
}

// NewSerperProvider creates a Serper-backed search provider.
func NewSerperProvider(apiKey, endpoint string, resultCount int, client *fetch.Client, log *logger.Logger) *SerperProvider {
	if endpoint == "" {
		endpoint = "https://google.serper.dev/search"
	}
	if resultCount <= 0 {
		resultCount = 5
	}
	return &SerperProvider{
		apiKey:      apiKey,
		endpoint:    endpoint,
		resultCount: resultCount,
		client:      client,
		log:         log.WithComponent("serper"),
	}
}

// Name implements Provider.
func (p *SerperProvider) Name() string { return "serper" }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search implements Provider. Returns an upstream error when the API key
// is missing or the call fails; the caller decides whether to retry.
func (p *SerperProvider) Search(ctx context.Context, product string) ([]Snippet, error) {
	if p.apiKey == "" {
		return nil, apperrors.UpstreamError(p.Name(), fmt.Errorf("no API key configured"))
	}

	req := serperRequest{
		Q:   fmt.Sprintf(queryTemplate, product),
		Num: p.resultCount,
	}

	var resp serperResponse
	err := p.client.PostJSON(ctx, p.endpoint, map[string]string{"X-API-KEY": p.apiKey}, req, &resp)
	if err != nil {
		return nil, apperrors.UpstreamError(p.Name(), err)
	}

	snippets := make([]Snippet, 0, len(resp.Organic))
	for _, item := range resp.Organic {
		if item.Snippet == "" && item.Link == "" {
			continue
		}
		snippets = append(snippets, Snippet{
			Source: p.Name(),
			URL:    item.Link,
			Title:  item.Title,
			Text:   item.Snippet,
		})
	}

	p.log.Debug("search completed", "product_len", len(product), "results", len(snippets))
	return snippets, nil
}

// Ping checks that the Serper endpoint resolves and an API key is set.
// The probe goes through the shared pooled client like every other
// outbound call.
func (p *SerperProvider) Ping(ctx context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("no API key configured")
	}
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	return p.client.Head(ctx, u.Scheme+"://"+u.Host)
}
