// Package sources gathers raw review material for a product from external
// search providers and the pages they point at.
package sources

import "context"

// Snippet is one unit of raw review material: either a search-result
// summary or extracted page text.
type Snippet struct {
	Source string `json:"source"` // "serper", "page"
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text"`
}

// Provider returns review snippets for a product.
type Provider interface {
	// Search returns snippets for product, ordered by relevance.
	Search(ctx context.Context, product string) ([]Snippet, error)

	// Name identifies the provider in logs and events.
	Name() string

	// Ping checks provider reachability for status probes.
	Ping(ctx context.Context) error
}
