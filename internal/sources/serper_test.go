package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/reviewradar/review-radar/internal/pkg/errors"
	"github.com/reviewradar/review-radar/internal/fetch"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
)

func TestSerperSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "test-key" {
			t.Errorf("X-API-KEY = %q", got)
		}

		var req serperRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if !strings.Contains(req.Q, "갤럭시 버즈") {
			t.Errorf("query = %q, missing product", req.Q)
		}
		if !strings.Contains(req.Q, "실사용 후기 장점 단점") {
			t.Errorf("query = %q, missing review terms", req.Q)
		}
		if req.Num != 5 {
			t.Errorf("num = %d, want 5", req.Num)
		}

		w.Write([]byte(`{"organic":[
			{"title":"review one","link":"https://example.com/1","snippet":"good sound"},
			{"title":"review two","link":"https://example.com/2","snippet":"battery weak"}
		]}`))
	}))
	defer srv.Close()

	client := fetch.New(fetch.DefaultConfig())
	defer client.Close()

	p := NewSerperProvider("test-key", srv.URL, 5, client, logger.Default())

	snippets, err := p.Search(context.Background(), "갤럭시 버즈")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(snippets) != 2 {
		t.Fatalf("got %d snippets, want 2", len(snippets))
	}
	if snippets[0].Source != "serper" {
		t.Errorf("Source = %q, want serper", snippets[0].Source)
	}
	if snippets[0].Text != "good sound" {
		t.Errorf("Text = %q", snippets[0].Text)
	}
	if snippets[1].URL != "https://example.com/2" {
		t.Errorf("URL = %q", snippets[1].URL)
	}
}

func TestSerperSearchNoKey(t *testing.T) {
	client := fetch.New(fetch.DefaultConfig())
	defer client.Close()

	p := NewSerperProvider("", "", 5, client, logger.Default())

	_, err := p.Search(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error with no API key")
	}
	if !apperrors.IsUpstream(err) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestSerperSearchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := fetch.New(fetch.DefaultConfig())
	defer client.Close()

	p := NewSerperProvider("test-key", srv.URL, 5, client, logger.Default())

	_, err := p.Search(context.Background(), "anything")
	if !apperrors.IsUpstream(err) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestSerperPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %q, want HEAD", r.Method)
		}
	}))
	defer srv.Close()

	client := fetch.New(fetch.DefaultConfig())
	defer client.Close()

	p := NewSerperProvider("test-key", srv.URL+"/search", 5, client, logger.Default())
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	keyless := NewSerperProvider("", srv.URL+"/search", 5, client, logger.Default())
	if err := keyless.Ping(context.Background()); err == nil {
		t.Error("expected error without API key")
	}
}
