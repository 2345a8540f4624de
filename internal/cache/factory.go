package cache

import (
	"fmt"

	"github.com/reviewradar/review-radar/internal/config"
)

// New creates a cache backend based on configuration.
// Supported types: "memory" (default) and "redis".
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryCache(cfg.Capacity, cfg.TTL()), nil
	case "redis":
		return NewRedisCache(cfg.RedisURL, cfg.Capacity, cfg.TTL())
	default:
		return nil, fmt.Errorf("unknown cache type: %q", cfg.Type)
	}
}
