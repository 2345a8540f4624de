package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/reviewradar/review-radar/internal/bus"
	"github.com/reviewradar/review-radar/internal/cache"
	"github.com/reviewradar/review-radar/internal/config"
	"github.com/reviewradar/review-radar/internal/filter"
	"github.com/reviewradar/review-radar/internal/genai"
	"github.com/reviewradar/review-radar/internal/metrics"
	"github.com/reviewradar/review-radar/internal/pipeline"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
	"github.com/reviewradar/review-radar/internal/report"
	"github.com/reviewradar/review-radar/internal/sources"
)

// stubSearch returns fixed snippets.
type stubSearch struct {
	snippets []sources.Snippet
	pingErr  error
}

func (s *stubSearch) Name() string                    { return "stub-search" }
func (s *stubSearch) Ping(context.Context) error      { return s.pingErr }
func (s *stubSearch) Search(context.Context, string) ([]sources.Snippet, error) {
	return s.snippets, nil
}

// stubGen returns a fixed report.
type stubGen struct{ answer string }

func (g *stubGen) Name() string { return "stub-gen" }
func (g *stubGen) Generate(context.Context, string, string) (*report.Report, error) {
	return &report.Report{
		Answer:      g.answer,
		Pros:        []string{"sound"},
		Cons:        []string{"battery"},
		Rating:      8.5,
		Model:       "stub-model",
		GeneratedAt: time.Now(),
	}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := logger.Default()

	cfg := &config.Config{}
	cfg.MaxQueryLength = 100
	cfg.Security.CORSOrigins = "*"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	cfg.Bus.Type = "memory"

	m := metrics.New()
	search := &stubSearch{snippets: []sources.Snippet{{Source: "stub", Text: "좋은 후기"}}}
	rotation := genai.NewRotation([]genai.Provider{&stubGen{answer: "분석 결과입니다"}}, log)

	s := &Server{
		cfg:     cfg,
		version: "test",
		log:     log,
		cache:   cache.NewMemoryCache(10, time.Hour),
		bus:     bus.NewMemoryBus(log),
		metrics: m,
		search:  search,
		genai:   rotation,
	}
	s.started = true

	s.pipeline = pipeline.New(pipeline.Config{
		Cache:          s.cache,
		Search:         search,
		Filter:         filter.New(500, 8000, nil, log),
		GenAI:          rotation,
		Bus:            s.bus,
		Metrics:        m,
		Logger:         log,
		MaxQueryLength: cfg.MaxQueryLength,
	})

	return s
}

// readFrames consumes an SSE body into decoded frames.
func readFrames(t *testing.T, body *bufio.Scanner) []progressFrame {
	t.Helper()
	var frames []progressFrame
	for body.Scan() {
		line := body.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f progressFrame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		frames = append(frames, f)
	}
	return frames
}

func TestAnalyzeStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/analyze?product=" + "%EA%B0%A4%EB%9F%AD%EC%8B%9C%20%EB%B2%84%EC%A6%88")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}

	frames := readFrames(t, bufio.NewScanner(resp.Body))
	if len(frames) < 4 {
		t.Fatalf("got %d frames, want at least 4: %+v", len(frames), frames)
	}

	final := frames[len(frames)-1]
	if final.P != 100 {
		t.Errorf("final p = %d, want 100", final.P)
	}
	if final.Answer != "분석 결과입니다" {
		t.Errorf("final answer = %q", final.Answer)
	}
	if final.Model != "stub-model" {
		t.Errorf("final model = %q", final.Model)
	}
	if final.Rating != 8.5 {
		t.Errorf("final rating = %v", final.Rating)
	}
	if final.Error {
		t.Error("successful run flagged as error")
	}

	// Progress is monotonic; only the last frame is terminal.
	last := -1
	for i, f := range frames {
		if f.P < last {
			t.Errorf("frame %d: p went backwards (%d after %d)", i, f.P, last)
		}
		last = f.P
		if f.Answer != "" && i != len(frames)-1 {
			t.Errorf("frame %d carries an answer before the end", i)
		}
	}
}

func TestAnalyzeValidationError(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	for _, q := range []string{"", "%3Cscript%3E", strings.Repeat("x", 150)} {
		resp, err := http.Get(ts.URL + "/analyze?product=" + q)
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}

		if resp.StatusCode != http.StatusOK {
			t.Errorf("product=%q: status = %d, want 200 with streamed error", q, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
			t.Errorf("product=%q: Content-Type = %q", q, ct)
		}

		frames := readFrames(t, bufio.NewScanner(resp.Body))
		resp.Body.Close()

		if len(frames) != 1 {
			t.Fatalf("product=%q: got %d frames, want a single terminal frame: %+v", q, len(frames), frames)
		}
		f := frames[0]
		if !f.Error {
			t.Errorf("product=%q: terminal frame not flagged as error: %+v", q, f)
		}
		if f.P != 0 {
			t.Errorf("product=%q: p = %d, want 0", q, f.P)
		}
		if f.Answer != "" {
			t.Errorf("product=%q: rejected query carries an answer", q)
		}
	}
}

func TestAnalyzeCachedSecondRun(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	get := func() []progressFrame {
		resp, err := http.Get(ts.URL + "/analyze?product=buds")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		defer resp.Body.Close()
		return readFrames(t, bufio.NewScanner(resp.Body))
	}

	first := get()
	second := get()

	if len(second) >= len(first) {
		t.Errorf("cached run emitted %d frames, fresh run %d; expected fewer", len(second), len(first))
	}
	final := second[len(second)-1]
	if final.P != 100 || final.Answer == "" {
		t.Errorf("cached final = %+v", final)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}

	if status.Status != "ok" {
		t.Errorf("status = %q", status.Status)
	}
	if status.Cache.Backend != "memory" {
		t.Errorf("cache backend = %q", status.Cache.Backend)
	}
	if status.Dependencies["stub-search"] != "ok" {
		t.Errorf("search dependency = %q", status.Dependencies["stub-search"])
	}
	if status.Dependencies["stub-gen"] != "ok" {
		t.Errorf("generation dependency = %q", status.Dependencies["stub-gen"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	// Drive one run so counters move.
	resp, _ := http.Get(ts.URL + "/analyze?product=buds")
	if resp != nil {
		readFrames(t, bufio.NewScanner(resp.Body))
		resp.Body.Close()
	}

	mresp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer mresp.Body.Close()

	sc := bufio.NewScanner(mresp.Body)
	var text strings.Builder
	for sc.Scan() {
		text.WriteString(sc.Text())
		text.WriteByte('\n')
	}
	if !strings.Contains(text.String(), "radar_cache_misses_total 1") {
		t.Errorf("metrics missing cache miss count:\n%s", text.String())
	}
}

func TestCORSHeaders(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
