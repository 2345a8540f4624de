// Package fetch provides the pooled HTTP client shared by the search,
// page-fetch, and generation layers.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// userAgent mimics a desktop browser so review pages serve full content.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodyBytes caps response bodies to protect against pathological pages.
const maxBodyBytes = 4 << 20 // 4 MiB

// Error describes a failed fetch with enough detail for retry decisions.
type Error struct {
	URL     string
	Status  int
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// safeURL drops the query string and fragment. Outbound calls carry API
// keys as query parameters, so errors keep only scheme, host, and path.
func safeURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}

// transportError builds an Error for a failed round trip, flagging timeouts.
func transportError(url string, err error) *Error {
	fe := &Error{URL: safeURL(url), Err: err}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		fe.Timeout = true
	} else if errors.Is(err, context.DeadlineExceeded) {
		fe.Timeout = true
	}
	return fe
}

// Config configures the pooled client.
type Config struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxConnections limits total connections per host.
	MaxConnections int

	// MaxKeepalive limits idle (keep-alive) connections per host.
	MaxKeepalive int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        12 * time.Second,
		MaxConnections: 10,
		MaxKeepalive:   5,
	}
}

// Client is a pooled HTTP client.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
}

// New creates a pooled client from config.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 10
	}
	if cfg.MaxKeepalive <= 0 {
		cfg.MaxKeepalive = 5
	}

	transport := &http.Transport{
		MaxConnsPerHost:     cfg.MaxConnections,
		MaxIdleConnsPerHost: cfg.MaxKeepalive,
		MaxIdleConns:        cfg.MaxConnections * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		transport: transport,
	}
}

// Get fetches a URL and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: safeURL(url), Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	return c.do(req)
}

// PostJSON sends a JSON body and decodes the JSON response into out.
// Extra headers (API keys, auth) are applied to the request.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{URL: safeURL(url), Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &Error{URL: safeURL(url), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	data, err := c.do(req)
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{URL: url, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}

// Head probes a URL. Any HTTP response counts as reachable; only
// transport failures are errors.
func (c *Client) Head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return &Error{URL: safeURL(url), Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(url, err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(req.URL.String(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: safeURL(req.URL.String()), Err: fmt.Errorf("reading body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{URL: safeURL(req.URL.String()), Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	return data, nil
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Timeout
}

// Close releases idle connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}
