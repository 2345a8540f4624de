package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reviewradar/review-radar/internal/pkg/hash"
	"github.com/reviewradar/review-radar/internal/report"
)

// keyPrefix namespaces report entries in a shared Redis instance.
const keyPrefix = "radar:report:"

// RedisCache is a Redis-backed result cache. Expiry is delegated to Redis
// key TTLs; capacity bounding is approximate (Redis owns eviction when the
// instance itself is memory-capped), so Stats reports the configured
// capacity for visibility only.
type RedisCache struct {
	client   *redis.Client
	ttl      time.Duration
	capacity int
}

// NewRedisCache creates a Redis-backed cache from a redis:// URL.
// Returns an error if the connection cannot be established.
func NewRedisCache(url string, capacity int, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisCache{
		client:   client,
		ttl:      ttl,
		capacity: capacity,
	}, nil
}

// redisKey hashes the normalized query to keep keys short and safe.
func redisKey(key string) string {
	return keyPrefix + hash.SHA256Short([]byte(key), 32)
}

// Get retrieves a report. Redis handles TTL expiry server-side.
func (c *RedisCache) Get(ctx context.Context, key string) (*report.Report, bool) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		return nil, false
	}

	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, false
	}

	return &rep, true
}

// Put stores a report with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, key string, rep *report.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	if err := c.client.Set(ctx, redisKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("storing report: %w", err)
	}

	return nil
}

// Size counts live report entries via a prefix scan.
func (c *RedisCache) Size(ctx context.Context) int {
	var count int
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

// Stats returns cache statistics.
func (c *RedisCache) Stats(ctx context.Context) Stats {
	return Stats{
		Size:     c.Size(ctx),
		Capacity: c.capacity,
		Backend:  "redis",
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
