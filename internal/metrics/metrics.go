package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/reviewradar/review-radar/internal/bus"
)

// Metrics holds all service metrics.
type Metrics struct {
	// Run lifecycle
	RunsStarted   *Counter
	RunsCompleted *Counter
	RunsFailed    *Counter
	RunLatency    *Histogram // milliseconds

	// Cache
	CacheHits   *Counter
	CacheMisses *Counter

	// Upstream providers
	UpstreamCalls   *CounterVec // by provider, status
	UpstreamRetries *CounterVec // by provider

	// Transport
	ActiveStreams *Gauge
	HTTPRequests  *CounterVec // by path, status

	// System
	GoroutineCount *Gauge

	startedAt time.Time
	history   *RedisHistory // optional, nil when not configured
}

// New creates the metrics registry.
func New() *Metrics {
	return &Metrics{
		RunsStarted:     NewCounter("radar_runs_started_total", "Total analysis runs started", nil),
		RunsCompleted:   NewCounter("radar_runs_completed_total", "Total analysis runs completed successfully", nil),
		RunsFailed:      NewCounter("radar_runs_failed_total", "Total analysis runs that ended in error", nil),
		RunLatency:      NewHistogram("radar_run_duration_ms", "Analysis run duration in milliseconds", nil),
		CacheHits:       NewCounter("radar_cache_hits_total", "Result cache hits", nil),
		CacheMisses:     NewCounter("radar_cache_misses_total", "Result cache misses", nil),
		UpstreamCalls:   NewCounterVec("radar_upstream_calls_total", "Upstream provider calls", []string{"provider", "status"}),
		UpstreamRetries: NewCounterVec("radar_upstream_retries_total", "Upstream provider retries", []string{"provider"}),
		ActiveStreams:   NewGauge("radar_active_streams", "Currently open progress streams", nil),
		HTTPRequests:    NewCounterVec("radar_http_requests_total", "HTTP requests", []string{"path", "status"}),
		GoroutineCount:  NewGauge("radar_goroutines", "Current goroutine count", nil),
		startedAt:       time.Now(),
	}
}

// WithHistory attaches a Redis-backed latency history.
func (m *Metrics) WithHistory(h *RedisHistory) *Metrics {
	m.history = h
	return m
}

// RecordUpstreamCall records one provider call outcome.
func (m *Metrics) RecordUpstreamCall(provider string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.UpstreamCalls.WithLabels(provider, status).Inc()
}

// RecordRunDuration records a completed run's latency and, when history is
// configured, persists a data point.
func (m *Metrics) RecordRunDuration(ctx context.Context, d time.Duration) {
	ms := float64(d.Milliseconds())
	m.RunLatency.Observe(ms)
	if m.history != nil {
		m.history.Append(ctx, ms)
	}
}

// SubscribeBus wires the lifecycle-event counters to the bus. Counting from
// bus events keeps the numbers right even for runs started outside the
// HTTP surface.
func (m *Metrics) SubscribeBus(ctx context.Context, b bus.Bus) error {
	pairs := map[string]*Counter{
		bus.TopicAnalysisStarted:   m.RunsStarted,
		bus.TopicAnalysisCompleted: m.RunsCompleted,
		bus.TopicAnalysisFailed:    m.RunsFailed,
	}
	for topic, counter := range pairs {
		if err := b.Subscribe(ctx, topic, func(_ context.Context, _ bus.Event) error {
			counter.Inc()
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// PrometheusFormat exports all metrics in Prometheus text exposition format.
func (m *Metrics) PrometheusFormat() string {
	m.GoroutineCount.Set(int64(runtime.NumGoroutine()))

	var b strings.Builder
	writeCounter(&b, m.RunsStarted)
	writeCounter(&b, m.RunsCompleted)
	writeCounter(&b, m.RunsFailed)
	writeHistogram(&b, m.RunLatency)
	writeCounter(&b, m.CacheHits)
	writeCounter(&b, m.CacheMisses)
	writeCounterVec(&b, m.UpstreamCalls)
	writeCounterVec(&b, m.UpstreamRetries)
	writeGauge(&b, m.ActiveStreams)
	writeCounterVec(&b, m.HTTPRequests)
	writeGauge(&b, m.GoroutineCount)
	return b.String()
}

// Handler serves the Prometheus text endpoint.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(m.PrometheusFormat()))
	})
}

// Stats is the JSON shape served at /v1/stats.
type Stats struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runs          RunStats         `json:"runs"`
	Cache         CacheCounters    `json:"cache"`
	Upstream      map[string]int64 `json:"upstream_calls"`
	ActiveStreams int64            `json:"active_streams"`
	LatencyP      LatencySummary   `json:"latency"`
}

// RunStats summarizes run counters.
type RunStats struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// CacheCounters summarizes cache counters.
type CacheCounters struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// LatencySummary summarizes the run latency histogram.
type LatencySummary struct {
	Count  int64   `json:"count"`
	SumMS  float64 `json:"sum_ms"`
	MeanMS float64 `json:"mean_ms"`
}

// Snapshot assembles the current stats.
func (m *Metrics) Snapshot() Stats {
	upstream := make(map[string]int64)
	for _, c := range m.UpstreamCalls.GetAll() {
		upstream[labelsToKey(c.labels)] = c.Value()
	}

	count := m.RunLatency.Count()
	sum := m.RunLatency.Sum()
	mean := 0.0
	if count > 0 {
		mean = sum / float64(count)
	}

	return Stats{
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
		Runs: RunStats{
			Started:   m.RunsStarted.Value(),
			Completed: m.RunsCompleted.Value(),
			Failed:    m.RunsFailed.Value(),
		},
		Cache: CacheCounters{
			Hits:   m.CacheHits.Value(),
			Misses: m.CacheMisses.Value(),
		},
		Upstream:      upstream,
		ActiveStreams: m.ActiveStreams.Value(),
		LatencyP: LatencySummary{
			Count:  count,
			SumMS:  sum,
			MeanMS: mean,
		},
	}
}

// StatsHandler serves the JSON stats endpoint.
func (m *Metrics) StatsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	})
}
