package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/retrieval"
	"github.com/cloo-solutions/logsage/internal/service"
)

// ErrPoolClosed is returned when submitting to a closed pool
var ErrPoolClosed = errors.New("analysis pool is closed")

// Poller is the change feed driven by FeedProcessor
type Poller interface {
	PollOnce(ctx context.Context) ([]domain.LogRecord, error)
}

// Analyzer is the analysis engine driven by the pool
type Analyzer interface {
	Analyze(ctx context.Context, record domain.LogRecord) domain.AnalysisResult
}

// Submitter accepts records for analysis
type Submitter interface {
	Submit(ctx context.Context, record domain.LogRecord) error
}

// FeedProcessor polls once per cycle and hands ERROR records to the pool
type FeedProcessor struct {
	feed   Poller
	pool   Submitter
	logger zerolog.Logger
}

func NewFeedProcessor(feed Poller, pool Submitter, logger zerolog.Logger) *FeedProcessor {
	return &FeedProcessor{feed: feed, pool: pool, logger: logger}
}

// ProcessJobs implements the JobProcessor interface. Submission blocks while
// the queue is full.
func (p *FeedProcessor) ProcessJobs(ctx context.Context) error {
	records, err := p.feed.PollOnce(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle skipped: %w", err)
	}

	queued := 0
	for _, rec := range records {
		if !rec.IsError() {
			continue
		}
		if err := p.pool.Submit(ctx, rec); err != nil {
			return fmt.Errorf("failed to queue log %s: %w", rec.ID, err)
		}
		queued++
	}

	if queued > 0 {
		p.logger.Info().Int("new", len(records)).Int("queued", queued).Msg("queued error logs for analysis")
	}
	return nil
}

// AnalysisPool runs a fixed number of workers over a bounded queue
type AnalysisPool struct {
	queue    chan domain.LogRecord
	analyzer Analyzer
	sink     service.ResultSink
	workers  int
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	processed atomic.Uint64
	failed    atomic.Uint64
}

func NewAnalysisPool(analyzer Analyzer, sink service.ResultSink, queueSize, workers int, logger zerolog.Logger) *AnalysisPool {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &AnalysisPool{
		queue:    make(chan domain.LogRecord, queueSize),
		analyzer: analyzer,
		sink:     sink,
		workers:  workers,
		logger:   logger.With().Str("component", "pool").Logger(),
	}
}

// Start launches the workers. ctx is passed to every analysis; cancel it
// only after Close to let in-flight work finish.
func (p *AnalysisPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.logger.Info().Int("workers", p.workers).Int("queue_size", cap(p.queue)).Msg("analysis pool started")
}

// Submit blocks until the record is queued, ctx is done or the pool closes.
func (p *AnalysisPool) Submit(ctx context.Context, record domain.LogRecord) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake and waits for queued and in-flight analyses.
func (p *AnalysisPool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info().
		Uint64("processed", p.processed.Load()).
		Uint64("provider_errors", p.failed.Load()).
		Msg("analysis pool drained")
}

// Pending is the number of queued records not yet picked up.
func (p *AnalysisPool) Pending() int {
	return len(p.queue)
}

func (p *AnalysisPool) Processed() uint64 {
	return p.processed.Load()
}

func (p *AnalysisPool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for rec := range p.queue {
		result := p.analyzer.Analyze(ctx, rec)
		p.processed.Add(1)
		if !result.OK() {
			p.failed.Add(1)
		}
		if p.sink == nil {
			continue
		}
		if err := p.sink.Write(ctx, result); err != nil {
			p.logger.Error().Err(err).Int("worker", id).Str("log_id", rec.ID).Msg("failed to write analysis")
		}
	}
}

// IndexBuilder is the part of the retrieval index a rebuild needs
type IndexBuilder interface {
	Build(corpus []string)
	Generation() uint64
}

// IndexRebuilder reloads the corpus and swaps in a new index snapshot
type IndexRebuilder struct {
	source retrieval.CorpusSource
	index  IndexBuilder
	logger zerolog.Logger
}

func NewIndexRebuilder(source retrieval.CorpusSource, index IndexBuilder, logger zerolog.Logger) *IndexRebuilder {
	return &IndexRebuilder{source: source, index: index, logger: logger}
}

// ProcessJobs implements the JobProcessor interface. A failed load keeps the
// current snapshot.
func (r *IndexRebuilder) ProcessJobs(ctx context.Context) error {
	docs, err := r.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	r.index.Build(docs)
	r.logger.Info().Int("documents", len(docs)).Uint64("generation", r.index.Generation()).Msg("retrieval index rebuilt")
	return nil
}
