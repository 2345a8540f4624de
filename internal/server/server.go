// Package server wires the analysis pipeline behind the HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/reviewradar/review-radar/internal/bus"
	"github.com/reviewradar/review-radar/internal/cache"
	"github.com/reviewradar/review-radar/internal/config"
	"github.com/reviewradar/review-radar/internal/fetch"
	"github.com/reviewradar/review-radar/internal/filter"
	"github.com/reviewradar/review-radar/internal/genai"
	"github.com/reviewradar/review-radar/internal/metrics"
	"github.com/reviewradar/review-radar/internal/pipeline"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
	"github.com/reviewradar/review-radar/internal/pkg/middleware"
	"github.com/reviewradar/review-radar/internal/pkg/security"
	"github.com/reviewradar/review-radar/internal/sources"
)

// Server is the HTTP server that wires all services together.
type Server struct {
	cfg        *config.Config
	version    string
	log        *logger.Logger
	httpServer *http.Server

	fetchClient *fetch.Client
	cache       cache.Cache
	bus         bus.Bus
	metrics     *metrics.Metrics
	search      sources.Provider
	genai       *genai.Rotation
	pipeline    *pipeline.Pipeline
	limiter     *middleware.RateLimiter

	mu      sync.RWMutex
	started bool
}

// New creates a server with all dependencies wired from config.
func New(cfg *config.Config, log *logger.Logger, version string) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		version: version,
		log:     log.WithComponent("server"),
	}

	s.fetchClient = fetch.New(fetch.Config{
		Timeout:        cfg.Fetch.Timeout(),
		MaxConnections: cfg.Fetch.MaxConnections,
		MaxKeepalive:   cfg.Fetch.MaxKeepalive,
	})

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	s.cache = c

	b, err := bus.New(cfg.Bus, log)
	if err != nil {
		return nil, fmt.Errorf("creating bus: %w", err)
	}
	s.bus = b

	s.metrics = metrics.New()
	if cfg.Metrics.RedisURL != "" {
		history, err := metrics.NewRedisHistory(cfg.Metrics.RedisURL)
		if err != nil {
			s.log.Warn("metrics history disabled", "error", err.Error())
		} else {
			s.metrics.WithHistory(history)
		}
	}
	if err := s.metrics.SubscribeBus(context.Background(), s.bus); err != nil {
		return nil, fmt.Errorf("subscribing metrics: %w", err)
	}

	s.search = sources.NewSerperProvider(
		cfg.Search.SerperAPIKey, cfg.Search.SerperURL, cfg.Search.ResultCount,
		s.fetchClient, log)

	s.log.Debug("outbound configuration",
		"settings", security.MaskSensitiveMap(map[string]string{
			"serper_url":     cfg.Search.SerperURL,
			"serper_api_key": cfg.Search.SerperAPIKey,
			"cache_redis":    cfg.Cache.RedisURL,
			"kafka_brokers":  cfg.Bus.KafkaBrokers,
		}))

	var pages *sources.PageFetcher
	if cfg.Search.FetchPages {
		pages = sources.NewPageFetcher(s.fetchClient, cfg.Search.PageCharCap, cfg.Fetch.MaxConnections, log)
	}

	s.genai = genai.FromConfig(cfg.GenAI, s.fetchClient, log)
	s.genai.OnAttempt(s.metrics.RecordUpstreamCall)

	s.pipeline = pipeline.New(pipeline.Config{
		Cache:          s.cache,
		Search:         s.search,
		Pages:          pages,
		Filter:         filter.New(cfg.Filter.SnippetCharCap, cfg.Filter.ContextCharLimit, cfg.Filter.ExtraKeywords, log),
		GenAI:          s.genai,
		Bus:            s.bus,
		Metrics:        s.metrics,
		Logger:         log,
		MaxQueryLength: cfg.MaxQueryLength,
	})

	if cfg.Security.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.Security.RateLimit,
			Burst:             cfg.Security.RateBurst,
			CleanupInterval:   time.Minute,
		})
	}

	return s, nil
}

// Start starts the HTTP server. Blocks until shutdown or listen failure.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:        s.cfg.Address(),
		Handler:     s.Routes(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: analysis streams stay open for the whole run.
		IdleTimeout: 120 * time.Second,
	}

	s.log.Info("starting HTTP server", "addr", s.cfg.Address())
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server and closes all resources.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP shutdown error", "error", err.Error())
		}
	}

	if err := s.cache.Close(); err != nil {
		s.log.Warn("cache close error", "error", err.Error())
	}
	if err := s.bus.Close(); err != nil {
		s.log.Warn("bus close error", "error", err.Error())
	}
	s.fetchClient.Close()

	s.started = false
	s.log.Info("server stopped")
	return nil
}

// Ready reports whether the server accepts traffic.
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Routes builds the full handler chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /v1/status", s.handleStatus)

	if s.cfg.Metrics.Enabled {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.metrics.Handler())
		mux.Handle("GET /v1/stats", s.metrics.StatsHandler())
	}

	var handler http.Handler = mux
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	handler = middleware.CORS(s.cfg.Security.CORSOrigins)(handler)
	return s.withLogging(handler)
}

// withLogging wraps the chain with request logging and the HTTP counter.
func (s *Server) withLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		handler.ServeHTTP(wrapped, r)

		s.metrics.HTTPRequests.WithLabels(r.URL.Path, fmt.Sprintf("%d", wrapped.status)).Inc()
		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start).String(),
			"headers", security.MaskSensitiveHeaders(r.Header),
		)
	})
}

// responseWriter captures the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards flushes so SSE works through the wrapper.
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
