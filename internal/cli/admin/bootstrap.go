package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloo-solutions/logsage/internal/api/handlers"
	"github.com/cloo-solutions/logsage/internal/config"
	"github.com/cloo-solutions/logsage/internal/jobs"
	"github.com/cloo-solutions/logsage/internal/logger"
	"github.com/cloo-solutions/logsage/internal/openai"
	"github.com/cloo-solutions/logsage/internal/retrieval"
	"github.com/cloo-solutions/logsage/internal/service"
	"github.com/cloo-solutions/logsage/internal/storage"
	"github.com/cloo-solutions/logsage/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	return logger.New(logger.Options{Level: level, Format: cfg.LogFormat, Caller: cfg.Debug})
}

// initTelemetry returns the flush function; it is a no-op without a DSN.
func initTelemetry(cfg *config.Config, log zerolog.Logger) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	flush, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
		Logger:           log,
	})
	if err != nil {
		log.Warn().Err(err).Msg("telemetry init failed, continuing without tracing")
		return func() {}
	}
	return flush
}

// newS3Client returns nil when no object store is configured.
func newS3Client(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage.S3Client, error) {
	if !cfg.HasS3() {
		return nil, nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Info().Str("bucket", s3Client.Bucket()).Msg("object storage ready")
	return s3Client, nil
}

// buildCorpus assembles the historical corpus from every configured source,
// in the order file, object, store.
func buildCorpus(cfg *config.Config, objects retrieval.ObjectGetter, store retrieval.LogLister, log zerolog.Logger) retrieval.MultiSource {
	var sources retrieval.MultiSource
	if cfg.CorpusFile != "" {
		sources = append(sources, retrieval.FileSource{Path: cfg.CorpusFile})
	}
	if cfg.CorpusS3Key != "" {
		if objects == nil {
			log.Warn().Str("key", cfg.CorpusS3Key).Msg("corpus object configured without object storage, skipping")
		} else {
			sources = append(sources, retrieval.ObjectSource{Store: objects, Key: cfg.CorpusS3Key})
		}
	}
	if cfg.CorpusFromStore {
		if store == nil {
			log.Warn().Msg("corpus from store requested without a log store, skipping")
		} else {
			sources = append(sources, retrieval.StoreSource{Logs: store, Limit: cfg.CorpusStoreLimit})
		}
	}
	return sources
}

// newAnalysisEngine loads the corpus once and builds the index and engine.
// A corpus that fails to load leaves the index empty; it answers with the
// sentinel until a rebuild succeeds.
func newAnalysisEngine(ctx context.Context, cfg *config.Config, corpus retrieval.CorpusSource, log zerolog.Logger) (*retrieval.Index, *service.Engine, error) {
	docs, err := corpus.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load historical corpus, starting with an empty index")
		docs = nil
	}
	index := retrieval.NewIndex(docs)
	log.Info().Int("documents", index.Size()).Msg("retrieval index built")

	var provider service.Reasoner
	if cfg.HasProvider() {
		provider = openai.NewClientWithConfig(openai.Config{
			APIKey:            cfg.ProviderAPIKey,
			BaseURL:           cfg.ProviderBaseURL,
			Model:             cfg.ProviderModel,
			Temperature:       cfg.ProviderTemperature,
			RequestsPerSecond: cfg.ProviderRPS,
		})
	} else {
		log.Warn().Msg("no reasoning provider configured, analyses will report PROVIDER_ERROR")
	}

	engine, err := service.NewEngine(index, provider, service.EngineConfig{
		TopK:            cfg.ContextTopK,
		ProviderTimeout: cfg.ProviderTimeout,
		CacheSize:       cfg.CacheSize,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create analysis engine: %w", err)
	}
	return index, engine, nil
}

// pipeline is the change-feed poller, the analysis pool and the optional
// index rebuilder, started and stopped as one unit.
type pipeline struct {
	feed    *service.ChangeFeed
	pool    *jobs.AnalysisPool
	poller  *jobs.Worker
	rebuild *jobs.Worker
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

func newPipeline(cfg *config.Config, source service.LogSource, engine *service.Engine, sink service.ResultSink, log zerolog.Logger) *pipeline {
	feed := service.NewChangeFeed(source, service.FeedConfig{
		PageSize:       cfg.PollPageSize,
		Level:          cfg.PollLevel,
		FetchTimeout:   cfg.FetchTimeout,
		UnhealthyAfter: cfg.UnhealthyAfter,
	}, log)
	pool := jobs.NewAnalysisPool(engine, sink, cfg.QueueSize, cfg.AnalysisWorkers, log)

	return &pipeline{
		feed:   feed,
		pool:   pool,
		poller: jobs.NewWorker("poll", jobs.NewFeedProcessor(feed, pool, log), cfg.PollInterval, log),
		logger: log,
	}
}

func (p *pipeline) withRebuild(interval time.Duration, corpus retrieval.CorpusSource, index *retrieval.Index) {
	if interval <= 0 {
		return
	}
	p.rebuild = jobs.NewWorker("rebuild", jobs.NewIndexRebuilder(corpus, index, p.logger), interval, p.logger)
}

func (p *pipeline) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.pool.Start(ctx)
	go p.poller.Start(ctx)
	if p.rebuild != nil {
		go p.rebuild.Start(ctx)
	}
}

// stop halts polling, then rebuilds, then drains the queue.
func (p *pipeline) stop() {
	p.poller.Stop()
	if p.rebuild != nil {
		p.rebuild.Stop()
	}
	p.pool.Close()
	if p.cancel != nil {
		p.cancel()
	}
}

// feedHealth keeps a missing pipeline an untyped nil for the health handler.
func feedHealth(p *pipeline) handlers.FeedHealth {
	if p == nil {
		return nil
	}
	return p.feed
}

// serveUntilSignal runs srv until SIGINT/SIGTERM, then calls beforeShutdown
// and shuts the server down gracefully.
func serveUntilSignal(srv *http.Server, log zerolog.Logger, beforeShutdown func()) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down...")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server failed")
	}

	if beforeShutdown != nil {
		beforeShutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	log.Info().Msg("server exited")
	return nil
}
