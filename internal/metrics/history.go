package metrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DataPoint is one timestamped run-latency observation.
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	ValueMS   float64   `json:"value_ms"`
}

// RedisHistory persists run latency data points in a Redis sorted set,
// scored by timestamp for range queries.
type RedisHistory struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisHistory creates a Redis-backed latency history.
func NewRedisHistory(url string) (*RedisHistory, error) {
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

	return &RedisHistory{
		client: client,
		key:    "radar:metrics:run_latency",
		ttl:    24 * time.Hour,
	}, nil
}

// Append stores one data point and prunes entries older than the
// retention window. Failures are ignored; history is best-effort.
func (h *RedisHistory) Append(ctx context.Context, valueMS float64) {
	now := time.Now()
	// Nanosecond suffix keeps members unique when values repeat.
	member := fmt.Sprintf("%.2f:%d", valueMS, now.UnixNano())

	pipe := h.client.Pipeline()
	pipe.ZAdd(ctx, h.key, redis.Z{Score: float64(now.Unix()), Member: member})
	pipe.ZRemRangeByScore(ctx, h.key, "-inf", fmt.Sprintf("%d", now.Add(-h.ttl).Unix()))
	_, _ = pipe.Exec(ctx)
}

// Load returns data points recorded since the given time.
func (h *RedisHistory) Load(ctx context.Context, since time.Time) ([]DataPoint, error) {
	results, err := h.client.ZRangeByScoreWithScores(ctx, h.key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.Unix()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	points := make([]DataPoint, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		raw, _, _ := strings.Cut(member, ":")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		points = append(points, DataPoint{
			Timestamp: time.Unix(int64(z.Score), 0),
			ValueMS:   value,
		})
	}

	return points, nil
}

// Close closes the Redis connection.
func (h *RedisHistory) Close() error {
	return h.client.Close()
}
