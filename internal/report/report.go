// Package report defines the analysis report produced by a pipeline run.
package report

import (
	"encoding/json"
	"strings"
	"time"
)

// Report is the final analysis for one product query.
type Report struct {
	// Answer is the markdown-formatted analysis text.
	Answer string `json:"answer"`

	// Structured fields extracted from the generation response, when present.
	Pros   []string `json:"pros,omitempty"`
	Cons   []string `json:"cons,omitempty"`
	Rating float64  `json:"rating,omitempty"`

	// Model is the generative model that produced the answer.
	Model string `json:"model,omitempty"`

	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// structuredTail is the JSON block the prompt asks the model to append.
type structuredTail struct {
	Pros   []string `json:"pros"`
	Cons   []string `json:"cons"`
	Rating float64  `json:"rating"`
}

// New builds a report from raw generation output. If the output ends with a
// fenced JSON block carrying pros/cons/rating, the block is parsed into the
// structured fields and stripped from the answer text. A missing or
// malformed block degrades to a markdown-only report.
func New(raw, model string) *Report {
	r := &Report{
		Answer:      strings.TrimSpace(raw),
		Model:       model,
		GeneratedAt: time.Now(),
	}

	body, block, ok := splitFencedTail(r.Answer)
	if !ok {
		return r
	}

	var tail structuredTail
	if err := json.Unmarshal([]byte(block), &tail); err != nil {
		return r
	}

	r.Answer = strings.TrimSpace(body)
	r.Pros = tail.Pros
	r.Cons = tail.Cons
	r.Rating = tail.Rating
	return r
}

// splitFencedTail splits text into body and the content of a trailing
// ```json fenced block. Returns ok=false when no such block terminates
// the text.
func splitFencedTail(text string) (body, block string, ok bool) {
	trimmed := strings.TrimRight(text, " \n")
	if !strings.HasSuffix(trimmed, "```") {
		return "", "", false
	}

	inner := trimmed[:len(trimmed)-3]
	start := strings.LastIndex(inner, "```")
	if start < 0 {
		return "", "", false
	}

	block = inner[start+3:]
	// Drop an optional language tag on the opening fence
	if idx := strings.IndexByte(block, '\n'); idx >= 0 {
		lang := strings.TrimSpace(block[:idx])
		if lang == "json" || lang == "" {
			block = block[idx+1:]
		}
	}

	block = strings.TrimSpace(block)
	if !strings.HasPrefix(block, "{") {
		return "", "", false
	}

	return trimmed[:start], block, true
}
