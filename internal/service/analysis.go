package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/cloo-solutions/logsage/internal/cache"
	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/openai"
	"github.com/cloo-solutions/logsage/internal/telemetry"
)

const (
	DefaultContextTopK     = 3
	DefaultProviderTimeout = 30 * time.Second

	providerErrorPrefix = "provider error: "
)

// Reasoner is the reasoning provider contract.
type Reasoner interface {
	Complete(ctx context.Context, req openai.ReasoningRequest) (string, error)
}

// Retriever answers nearest-neighbour queries over historical errors.
type Retriever interface {
	Query(text string, k int) []string
	Generation() uint64
}

type EngineConfig struct {
	TopK            int
	ProviderTimeout time.Duration
	CacheSize       int
}

type contextKey struct {
	generation uint64
	query      string
}

// Engine turns an ERROR record plus retrieved context into an AnalysisResult.
// It is safe for concurrent use by several workers.
type Engine struct {
	index    Retriever
	provider Reasoner
	cfg      EngineConfig
	logger   zerolog.Logger

	results  *cache.LRU[string, domain.AnalysisResult]
	contexts *cache.LRU[contextKey, string]
	inflight singleflight.Group

	now func() time.Time
}

// NewEngine builds an engine. A nil provider makes every analysis a
// PROVIDER_ERROR result.
func NewEngine(index Retriever, provider Reasoner, cfg EngineConfig, logger zerolog.Logger) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("retrieval index is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultContextTopK
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = cache.DefaultCapacity
	}

	results, err := cache.NewLRU[string, domain.AnalysisResult](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	contexts, err := cache.NewLRU[contextKey, string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("context cache: %w", err)
	}

	return &Engine{
		index:    index,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With().Str("component", "analysis").Logger(),
		results:  results,
		contexts: contexts,
		now:      time.Now,
	}, nil
}

// Analyze never returns an error: provider failures come back as a
// PROVIDER_ERROR result. Identical messages reuse the cached answer, and
// concurrent identical messages share a single provider call.
func (e *Engine) Analyze(ctx context.Context, record domain.LogRecord) domain.AnalysisResult {
	ctx, span := telemetry.StartSpan(ctx, "analysis.analyze", telemetry.SpanAttributes{
		LogID:     record.ID,
		App:       record.App,
		Operation: "analyze",
	})
	defer span.End()

	if cached, ok := e.results.Get(record.Message); ok {
		return e.reuse(cached, record)
	}

	led := false
	v, _, _ := e.inflight.Do(record.Message, func() (any, error) {
		// A caller that missed the cache just before the previous flight
		// finished lands here after the result was stored.
		if cached, ok := e.results.Get(record.Message); ok {
			return cached, nil
		}
		led = true
		return e.analyzeUncached(ctx, span, record), nil
	})

	result := v.(domain.AnalysisResult)
	if !led {
		return e.reuse(result, record)
	}
	return result
}

// reuse re-addresses a result computed for another record with the same
// message.
func (e *Engine) reuse(r domain.AnalysisResult, record domain.LogRecord) domain.AnalysisResult {
	r.LogID = record.ID
	r.Cached = true
	r.CreatedAt = e.now().UTC()
	e.logger.Debug().Str("log_id", record.ID).Str("status", string(r.Status)).Msg("analysis reused")
	return r
}

func (e *Engine) analyzeUncached(ctx context.Context, span *telemetry.Span, record domain.LogRecord) domain.AnalysisResult {
	req := buildAnalysisRequest(e.RetrieveContext(record.Message), record.Message)

	result := domain.AnalysisResult{
		LogID:     record.ID,
		Message:   record.Message,
		CreatedAt: e.now().UTC(),
	}

	text, err := e.complete(ctx, req)
	if err != nil {
		result.Status = domain.AnalysisStatusProviderError
		result.RiskLevel = domain.RiskUnknown
		result.RawText = providerErrorPrefix + err.Error()
		span.SetStatus(sentry.SpanStatusInternalError)
		telemetry.CaptureError(ctx, fmt.Errorf("analyze log %s: %w", record.ID, err))
		e.logger.Warn().Err(err).Str("log_id", record.ID).Str("app", record.App).Msg("provider call failed")
		return result
	}

	parsed := parseAnalysis(text)
	result.Status = domain.AnalysisStatusOK
	result.RawText = text
	result.Issue = parsed.Issue
	result.PossibleReason = parsed.PossibleReason
	result.RiskLevel = parsed.RiskLevel
	result.RecommendedFix = parsed.RecommendedFix

	e.results.Add(record.Message, result)
	return result
}

// Ask answers a free-form question grounded on the same index. Provider
// failures are returned as text, not as an error.
func (e *Engine) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.ErrEmptyQuestion
	}

	ctx, span := telemetry.StartSpan(ctx, "analysis.ask", telemetry.SpanAttributes{Operation: "ask"})
	defer span.End()

	text, err := e.complete(ctx, buildAskRequest(e.RetrieveContext(question), question))
	if err != nil {
		span.SetStatus(sentry.SpanStatusInternalError)
		telemetry.CaptureError(ctx, fmt.Errorf("ask: %w", err))
		e.logger.Warn().Err(err).Msg("provider call failed for question")
		return providerErrorPrefix + err.Error(), nil
	}
	return text, nil
}

// RetrieveContext returns the top matches for query joined by newlines.
// Results are memoized per index generation.
func (e *Engine) RetrieveContext(query string) string {
	key := contextKey{generation: e.index.Generation(), query: query}
	if ctxText, ok := e.contexts.Get(key); ok {
		return ctxText
	}
	ctxText := strings.Join(e.index.Query(query, e.cfg.TopK), "\n")
	e.contexts.Add(key, ctxText)
	return ctxText
}

// complete makes a single provider attempt under the configured timeout.
func (e *Engine) complete(ctx context.Context, req openai.ReasoningRequest) (text string, err error) {
	if e.provider == nil {
		return "", fmt.Errorf("no reasoning provider configured")
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
	defer cancel()

	return e.provider.Complete(callCtx, req)
}
