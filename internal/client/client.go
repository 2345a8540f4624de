// Package client provides an HTTP client for the Review Radar API.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is an HTTP client for the Review Radar API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the base URL of the API server.
	BaseURL string

	// Timeout bounds non-streaming requests. Streaming requests use the
	// caller's context instead.
	Timeout time.Duration

	// MaxIdleConns limits idle (keep-alive) connections.
	MaxIdleConns int

	// IdleConnTimeout closes idle connections after this duration.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:8080",
		Timeout:         10 * time.Second,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
}

// New creates an API client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    cfg.MaxIdleConns,
				IdleConnTimeout: cfg.IdleConnTimeout,
			},
			// Timeout is applied per-request, not here: it would cut
			// long-running analysis streams short.
		},
	}
}

// ProgressEvent is one decoded SSE frame from an analysis stream.
type ProgressEvent struct {
	Percent int      `json:"p"`
	Message string   `json:"m"`
	Answer  string   `json:"answer,omitempty"`
	Model   string   `json:"model,omitempty"`
	Pros    []string `json:"pros,omitempty"`
	Cons    []string `json:"cons,omitempty"`
	Rating  float64  `json:"rating,omitempty"`
	Error   bool     `json:"error,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// Analyze streams analysis progress for a product, invoking fn for every
// frame. Returns after the terminal frame, stream end, or ctx cancellation.
func (c *Client) Analyze(ctx context.Context, product string, fn func(ProgressEvent)) error {
	u := fmt.Sprintf("%s/analyze?product=%s", c.baseURL, url.QueryEscape(product))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lastErr bool
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return fmt.Errorf("decoding progress frame: %w", err)
		}

		fn(ev)
		lastErr = ev.Error

		if ev.Error || ev.Answer != "" {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	if lastErr {
		return fmt.Errorf("analysis failed")
	}
	return nil
}

// Status is the response from /v1/status.
type Status struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Cache        CacheStatus       `json:"cache"`
	Dependencies map[string]string `json:"dependencies"`
	Providers    []string          `json:"genai_providers"`
}

// CacheStatus describes cache occupancy.
type CacheStatus struct {
	Backend  string `json:"backend"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// Status fetches the server's operational status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.getJSON(ctx, "/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/healthz", nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	_ = json.NewDecoder(resp.Body).Decode(apiErr)
	return apiErr
}
