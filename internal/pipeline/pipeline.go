// Package pipeline orchestrates one product analysis run: validate, check
// the cache, gather review material, filter it, generate the report, and
// store the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/reviewradar/review-radar/internal/bus"
	"github.com/reviewradar/review-radar/internal/cache"
	"github.com/reviewradar/review-radar/internal/filter"
	"github.com/reviewradar/review-radar/internal/genai"
	"github.com/reviewradar/review-radar/internal/metrics"
	apperrors "github.com/reviewradar/review-radar/internal/pkg/errors"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
	"github.com/reviewradar/review-radar/internal/pkg/security"
	"github.com/reviewradar/review-radar/internal/report"
	"github.com/reviewradar/review-radar/internal/sources"
)

// Stage progress percentages. Values only move forward within a run.
const (
	percentValidated  = 10
	percentFetching   = 30
	percentFiltering  = 60
	percentGenerating = 90
	percentDone       = 100
)

// Event is one progress update on a run's stream. Exactly one terminal
// event (Report or Err set) ends every stream.
type Event struct {
	Percent int
	Message string
	Report  *report.Report
	Err     error
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	return e.Report != nil || e.Err != nil
}

// Pipeline runs product analyses.
type Pipeline struct {
	cache          cache.Cache
	search         sources.Provider
	pages          *sources.PageFetcher // nil disables page enrichment
	filter         *filter.Filter
	genai          *genai.Rotation
	bus            bus.Bus
	metrics        *metrics.Metrics
	log            *logger.Logger
	maxQueryLength int

	// flights dedupes concurrent cache misses for the same key.
	flights singleflight.Group
}

// Config wires the pipeline's collaborators.
type Config struct {
	Cache          cache.Cache
	Search         sources.Provider
	Pages          *sources.PageFetcher
	Filter         *filter.Filter
	GenAI          *genai.Rotation
	Bus            bus.Bus
	Metrics        *metrics.Metrics
	Logger         *logger.Logger
	MaxQueryLength int
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Pipeline{
		cache:          cfg.Cache,
		search:         cfg.Search,
		pages:          cfg.Pages,
		filter:         cfg.Filter,
		genai:          cfg.GenAI,
		bus:            cfg.Bus,
		metrics:        cfg.Metrics,
		log:            log.WithComponent("pipeline"),
		maxQueryLength: cfg.MaxQueryLength,
	}
}

// flightResult is what one deduped computation produces.
type flightResult struct {
	report *report.Report
}

// Run starts an analysis. The returned channel carries progress events
// and is closed right after its single terminal event. Validation
// failures terminate the stream immediately, before any cache lookup or
// outbound call.
func (p *Pipeline) Run(ctx context.Context, product string) <-chan Event {
	events := make(chan Event, 8)

	reject := func(reason string) <-chan Event {
		appErr := apperrors.ValidationError(reason)
		p.log.Warn("query rejected",
			"product", security.SanitizeForLog(product), "error", reason)
		events <- Event{Message: fmt.Sprintf("❌ 오류: %s", userMessage(appErr)), Err: appErr}
		close(events)
		return events
	}

	if err := security.ValidateQuery(product, p.maxQueryLength); err != nil {
		return reject(err.Error())
	}

	// Everything downstream sees only the sanitized text. A query left
	// empty by sanitization has nothing to search for.
	product = security.SanitizeQuery(product)
	if product == "" {
		return reject("validation failed for product: no searchable characters")
	}

	runID := uuid.NewString()
	go p.run(ctx, runID, product, events)

	return events
}

func (p *Pipeline) run(ctx context.Context, runID, product string, events chan<- Event) {
	started := time.Now()
	log := p.log.WithRun(runID)

	emit := func(e Event) {
		// Buffered sends go through even mid-cancellation so the terminal
		// event is not lost to a racing select.
		select {
		case events <- e:
		default:
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}
	}

	finish := func(e Event) {
		emit(e)
		close(events)
	}

	fail := func(err error) {
		log.Error("run failed", "error", err.Error())
		p.publish(bus.TopicAnalysisFailed, runID, map[string]string{"error": err.Error()})
		finish(Event{Message: fmt.Sprintf("❌ 오류: %s", userMessage(err)), Err: err})
	}

	p.publish(bus.TopicAnalysisStarted, runID, map[string]string{
		"product": security.SanitizeForLog(product),
	})

	emit(Event{Percent: percentValidated, Message: "🔍 요청을 확인하는 중입니다..."})

	key := cache.NormalizeKey(product)

	if rep, ok := p.cache.Get(ctx, key); ok {
		p.metrics.CacheHits.Inc()
		log.Info("cache hit", "key_len", len(key))
		p.publish(bus.TopicAnalysisCompleted, runID, map[string]string{"cache": "hit"})
		p.metrics.RecordRunDuration(ctx, time.Since(started))
		finish(Event{
			Percent: percentDone,
			Message: fmt.Sprintf("✅ %s 분석 완료! (캐시)", rep.Model),
			Report:  rep,
		})
		return
	}
	p.metrics.CacheMisses.Inc()

	emit(Event{Percent: percentFetching, Message: "🌐 리뷰 소스를 탐색 중입니다..."})

	// Concurrent misses for the same key share one computation. Only the
	// leader's closure runs, so its emit feeds its own stream; followers
	// jump from 30 straight to the terminal event.
	resCh := p.flights.DoChan(key, func() (any, error) {
		rep, err := p.compute(ctx, log, product, key, emit)
		if err != nil {
			return nil, err
		}
		return flightResult{report: rep}, nil
	})

	select {
	case <-ctx.Done():
		fail(apperrors.TimeoutError("analysis"))
		return
	case res := <-resCh:
		if res.Err != nil {
			fail(res.Err)
			return
		}

		rep := res.Val.(flightResult).report
		p.publish(bus.TopicAnalysisCompleted, runID, map[string]string{"cache": "miss"})
		p.metrics.RecordRunDuration(ctx, time.Since(started))
		finish(Event{
			Percent: percentDone,
			Message: fmt.Sprintf("✅ %s 분석 완료!", rep.Model),
			Report:  rep,
		})
	}
}

// compute runs the fetch, filter, generate, and cache stages. It executes
// once per key across concurrent runs.
func (p *Pipeline) compute(ctx context.Context, log *logger.Logger, product, key string, emit func(Event)) (*report.Report, error) {
	snippets, err := p.searchWithRetry(ctx, product)
	if err != nil {
		return nil, err
	}
	if len(snippets) == 0 {
		return nil, apperrors.UpstreamError(p.search.Name(), fmt.Errorf("no search results")).
			WithUserMessage("검색 결과가 없습니다")
	}

	if p.pages != nil {
		snippets = p.pages.Enrich(ctx, snippets)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	emit(Event{
		Percent: percentFiltering,
		Message: fmt.Sprintf("📦 %d개의 소스에서 본문을 추출하고 광고를 제거 중입니다...", len(snippets)),
	})

	filtered := p.filter.Apply(snippets)
	log.Info("snippets filtered",
		"kept", filtered.Kept, "spam", filtered.Spam, "duplicate", filtered.Duplicate)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	emit(Event{Percent: percentGenerating, Message: "🧠 AI 모델을 연결하여 리포트를 작성 중입니다..."})

	rep, err := p.genai.Generate(ctx, product, filtered.Context)
	if err != nil {
		return nil, err
	}

	// A failed write costs a future cache hit, not this run.
	if err := p.cache.Put(ctx, key, rep); err != nil {
		log.Warn("cache write failed", "error", err.Error())
	}

	return rep, nil
}

// searchWithRetry calls the search provider, retrying once on failure.
func (p *Pipeline) searchWithRetry(ctx context.Context, product string) ([]sources.Snippet, error) {
	snippets, err := p.search.Search(ctx, product)
	p.metrics.RecordUpstreamCall(p.search.Name(), err)
	if err == nil {
		return snippets, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	p.log.Warn("search failed, retrying once", "provider", p.search.Name(), "error", err.Error())
	p.metrics.UpstreamRetries.WithLabels(p.search.Name()).Inc()

	snippets, err = p.search.Search(ctx, product)
	p.metrics.RecordUpstreamCall(p.search.Name(), err)
	return snippets, err
}

// publish sends a lifecycle event; bus failures only get logged.
func (p *Pipeline) publish(topic, runID string, payload any) {
	if p.bus == nil {
		return
	}
	// Detached context: lifecycle events outlive cancelled runs.
	if err := p.bus.Publish(context.Background(), topic, bus.NewEvent(topic, "pipeline", runID, payload)); err != nil {
		p.log.Warn("publish failed", "topic", topic, "error", err.Error())
	}
}

// userMessage keeps internal error detail out of the client-facing text.
// Validation messages describe the caller's own input and are shown as-is;
// everything else gets a generic message per code unless the error carries
// curated user text.
func userMessage(err error) string {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		return "분석 중 오류가 발생했습니다"
	}
	if appErr.UserMessage != "" {
		return appErr.UserMessage
	}
	switch appErr.Code {
	case apperrors.CodeValidation, apperrors.CodeInvalidRequest:
		return appErr.Message
	case apperrors.CodeUpstream:
		return "외부 서비스 호출에 실패했습니다. 잠시 후 다시 시도해주세요"
	case apperrors.CodeTimeout:
		return "분석 시간이 초과되었습니다"
	default:
		return "분석 중 오류가 발생했습니다"
	}
}
