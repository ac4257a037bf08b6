package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a processor once on start and then on every tick
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	logger       zerolog.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
	stopOnce     sync.Once
	started      atomic.Bool
}

// NewWorker creates a new Worker instance
func NewWorker(name string, processor JobProcessor, pollInterval time.Duration, logger zerolog.Logger) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		logger:       logger.With().Str("worker", name).Logger(),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled or Stop is called.
// A cycle in progress always completes before Start returns.
func (w *Worker) Start(ctx context.Context) {
	w.started.Store(true)
	defer close(w.doneChan)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.pollInterval).Msg("worker started")

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			w.logger.Info().Msg("worker stopped: stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	select {
	case <-w.stopChan:
		return
	default:
	}
	if err := w.processor.ProcessJobs(ctx); err != nil {
		w.logger.Error().Err(err).Msg("error processing jobs")
	}
}

// Stop gracefully stops the worker. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	if w.started.Load() {
		<-w.doneChan
	}
	w.logger.Info().Msg("worker shutdown complete")
}
