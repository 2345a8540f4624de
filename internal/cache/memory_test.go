package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/reviewradar/review-radar/internal/report"
)

func testReport(answer string) *report.Report {
	return &report.Report{
		Answer:      answer,
		Model:       "test-model",
		GeneratedAt: time.Now(),
	}
}

func TestMemoryCachePutGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Hour)

	key := NormalizeKey("Galaxy Buds Pro")
	if err := c.Put(ctx, key, testReport("great earbuds")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Answer != "great earbuds" {
		t.Errorf("Answer = %q, want %q", got.Answer, "great earbuds")
	}

	if _, ok := c.Get(ctx, NormalizeKey("something else")); ok {
		t.Error("expected cache miss for unknown key")
	}
}

func TestMemoryCacheNormalizedKeysCollide(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Hour)

	if err := c.Put(ctx, NormalizeKey("  Galaxy   Buds  "), testReport("a")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	variants := []string{
		"galaxy buds",
		"Galaxy Buds",
		"GALAXY    BUDS",
	}
	for _, q := range variants {
		if _, ok := c.Get(ctx, NormalizeKey(q)); !ok {
			t.Errorf("expected hit for variant %q", q)
		}
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(3, time.Hour)

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("product-%d", i)
		if err := c.Put(ctx, key, testReport(key)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	// product-0 becomes most recently used; product-1 is now oldest.
	if _, ok := c.Get(ctx, "product-0"); !ok {
		t.Fatal("expected hit for product-0")
	}

	if err := c.Put(ctx, "product-3", testReport("new")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, ok := c.Get(ctx, "product-1"); ok {
		t.Error("expected product-1 to be evicted")
	}
	if _, ok := c.Get(ctx, "product-0"); !ok {
		t.Error("expected product-0 to survive eviction")
	}
	if _, ok := c.Get(ctx, "product-3"); !ok {
		t.Error("expected product-3 to be present")
	}
	if size := c.Size(ctx); size != 3 {
		t.Errorf("Size = %d, want 3", size)
	}
}

func TestMemoryCacheUpdateDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Hour)

	c.Put(ctx, "a", testReport("v1"))
	c.Put(ctx, "b", testReport("v1"))
	c.Put(ctx, "a", testReport("v2"))

	if _, ok := c.Get(ctx, "b"); !ok {
		t.Error("re-put of existing key should not evict others")
	}
	got, ok := c.Get(ctx, "a")
	if !ok || got.Answer != "v2" {
		t.Errorf("expected updated value v2, got %v ok=%v", got, ok)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute)

	base := time.Now()
	c.now = func() time.Time { return base }

	if err := c.Put(ctx, "key", testReport("fresh")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	if _, ok := c.Get(ctx, "key"); !ok {
		t.Error("entry within TTL should be a hit")
	}

	c.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, ok := c.Get(ctx, "key"); ok {
		t.Error("entry past TTL should be a miss")
	}
	if size := c.Size(ctx); size != 0 {
		t.Errorf("Size after expiry = %d, want 0", size)
	}
}

func TestMemoryCacheStats(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(5, time.Hour)
	c.Put(ctx, "a", testReport("a"))
	c.Put(ctx, "b", testReport("b"))

	stats := c.Stats(ctx)
	if stats.Size != 2 {
		t.Errorf("Size = %d, want 2", stats.Size)
	}
	if stats.Capacity != 5 {
		t.Errorf("Capacity = %d, want 5", stats.Capacity)
	}
	if stats.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", stats.Backend)
	}
}

func TestMemoryCacheDefaults(t *testing.T) {
	c := NewMemoryCache(0, 0)
	if c.capacity != 10 {
		t.Errorf("default capacity = %d, want 10", c.capacity)
	}
	if c.ttl != time.Hour {
		t.Errorf("default ttl = %v, want 1h", c.ttl)
	}
}
