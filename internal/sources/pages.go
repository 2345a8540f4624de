package sources

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/reviewradar/review-radar/internal/fetch"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
)

// boilerplateSelectors are stripped before text extraction. These carry
// navigation, ads, and tracking rather than review content.
const boilerplateSelectors = "script, style, header, footer, nav, form, iframe, noscript"

// PageFetcher enriches search snippets by fetching the pages they link to
// and extracting readable text.
type PageFetcher struct {
	client      *fetch.Client
	charCap     int
	concurrency int
	log         *logger.Logger
}

// NewPageFetcher creates a page fetcher. charCap bounds the extracted text
// per page; concurrency bounds parallel fetches.
func NewPageFetcher(client *fetch.Client, charCap, concurrency int, log *logger.Logger) *PageFetcher {
	if charCap <= 0 {
		charCap = 10000
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &PageFetcher{
		client:      client,
		charCap:     charCap,
		concurrency: concurrency,
		log:         log.WithComponent("pages"),
	}
}

// Enrich fetches each snippet's URL in parallel and returns the input
// snippets plus one page snippet per successfully fetched URL. Page
// failures are logged and skipped; Enrich never fails.
func (f *PageFetcher) Enrich(ctx context.Context, snippets []Snippet) []Snippet {
	seen := make(map[string]struct{})
	var urls []string
	for _, s := range snippets {
		if s.URL == "" {
			continue
		}
		if _, dup := seen[s.URL]; dup {
			continue
		}
		seen[s.URL] = struct{}{}
		urls = append(urls, s.URL)
	}

	if len(urls) == 0 {
		return snippets
	}

	var mu sync.Mutex
	pages := make([]Snippet, 0, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, u := range urls {
		g.Go(func() error {
			body, err := f.client.Get(gCtx, u)
			if err != nil {
				f.log.Debug("page fetch skipped", "url", u, "error", err.Error())
				return nil
			}

			text := f.extractText(body)
			if text == "" {
				return nil
			}

			mu.Lock()
			pages = append(pages, Snippet{Source: "page", URL: u, Text: text})
			mu.Unlock()
			return nil
		})
	}

	// Workers only return nil; Wait is for synchronization.
	_ = g.Wait()

	f.log.Debug("page enrichment completed", "requested", len(urls), "fetched", len(pages))
	return append(snippets, pages...)
}

// extractText strips boilerplate elements and collapses the remaining
// text to single-space-separated words, capped at charCap runes.
func (f *PageFetcher) extractText(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find(boilerplateSelectors).Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	runes := []rune(text)
	if len(runes) > f.charCap {
		text = string(runes[:f.charCap])
	}
	return text
}
