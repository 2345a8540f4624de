// Package cache provides the bounded, time-expiring result cache that maps
// normalized product queries to completed reports.
package cache

import (
	"context"
	"strings"

	"github.com/reviewradar/review-radar/internal/pkg/security"
	"github.com/reviewradar/review-radar/internal/report"
)

// Cache is the interface for result cache implementations.
type Cache interface {
	// Get returns the cached report for key, or ok=false on miss.
	// Entries older than the configured TTL are treated as misses.
	Get(ctx context.Context, key string) (*report.Report, bool)

	// Put inserts or replaces the entry for key. When the store is at
	// capacity and key is new, the least-recently-used entry is evicted.
	Put(ctx context.Context, key string, rep *report.Report) error

	// Size returns the current number of live entries.
	Size(ctx context.Context) int

	// Stats returns cache statistics for the status endpoint.
	Stats(ctx context.Context) Stats

	// Close releases backend resources.
	Close() error
}

// Stats holds cache statistics.
type Stats struct {
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Backend  string `json:"backend"`
}

// NormalizeKey maps equivalent queries onto one cache slot: the sanitized
// query text, lower-cased.
func NormalizeKey(query string) string {
	return strings.ToLower(security.SanitizeQuery(query))
}
