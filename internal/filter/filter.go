// Package filter removes spam and ad content from review snippets and
// assembles the bounded context block handed to generation.
package filter

import (
	"strings"

	"github.com/reviewradar/review-radar/internal/pkg/hash"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
	"github.com/reviewradar/review-radar/internal/sources"
)

// truncationMarker is appended when the context block is cut at the limit.
const truncationMarker = "…[truncated]"

// defaultSpamKeywords mark commerce and affiliate content. Matching is
// case-insensitive and checked before any per-snippet work.
var defaultSpamKeywords = []string{
	"장바구니",
	"쿠폰",
	"할인코드",
	"최저가",
	"제휴",
	"공동구매",
	"무료배송",
	"sponsored",
	"affiliate link",
	"buy now",
	"add to cart",
	"promo code",
}

// Filter screens snippets and builds the generation context.
type Filter struct {
	keywords       []string
	snippetCharCap int
	contextLimit   int
	log            *logger.Logger
}

// Result summarizes one filtering pass for logging and progress messages.
type Result struct {
	Kept      int
	Spam      int
	Duplicate int
	Context   string
}

// New creates a filter. extraKeywords extend the built-in spam list.
func New(snippetCharCap, contextLimit int, extraKeywords []string, log *logger.Logger) *Filter {
	if snippetCharCap <= 0 {
		snippetCharCap = 500
	}
	if contextLimit <= 0 {
		contextLimit = 8000
	}

	keywords := make([]string, 0, len(defaultSpamKeywords)+len(extraKeywords))
	for _, k := range defaultSpamKeywords {
		keywords = append(keywords, strings.ToLower(k))
	}
	for _, k := range extraKeywords {
		if k = strings.TrimSpace(strings.ToLower(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	return &Filter{
		keywords:       keywords,
		snippetCharCap: snippetCharCap,
		contextLimit:   contextLimit,
		log:            log.WithComponent("filter"),
	}
}

// Apply screens snippets and assembles the context block. It never fails:
// empty or fully-spam input yields an empty context.
func (f *Filter) Apply(snippets []sources.Snippet) Result {
	var res Result
	seen := make(map[string]struct{}, len(snippets))
	var blocks []string

	for _, s := range snippets {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}

		if f.isSpam(text) {
			res.Spam++
			continue
		}

		text = truncateRunes(text, f.snippetCharCap)

		key := hash.SnippetKey(text)
		if _, dup := seen[key]; dup {
			res.Duplicate++
			continue
		}
		seen[key] = struct{}{}

		res.Kept++
		blocks = append(blocks, text)
	}

	res.Context = f.assemble(blocks)

	f.log.Debug("filter pass completed",
		"kept", res.Kept, "spam", res.Spam, "duplicate", res.Duplicate,
		"context_len", len(res.Context))
	return res
}

// isSpam reports whether text contains any spam keyword.
func (f *Filter) isSpam(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// assemble joins blocks with blank lines, cutting at the context limit.
func (f *Filter) assemble(blocks []string) string {
	joined := strings.Join(blocks, "\n\n")
	runes := []rune(joined)
	if len(runes) <= f.contextLimit {
		return joined
	}

	cut := f.contextLimit - len([]rune(truncationMarker))
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + truncationMarker
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
