package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/telemetry"
)

// LogSource is the read side of a log store.
// ListLogs returns the most recent filter.Limit records, oldest first.
type LogSource interface {
	ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error)
}

// SeenSet records identifiers already emitted. It only grows.
type SeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// Add reports whether id was new.
func (s *SeenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *SeenSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

type FeedConfig struct {
	PageSize       int
	Level          string
	FetchTimeout   time.Duration
	UnhealthyAfter int
}

// FeedStats is a point-in-time view of poller counters.
type FeedStats struct {
	Cycles              uint64 `json:"cycles"`
	Emitted             uint64 `json:"emitted"`
	SkippedWithoutID    uint64 `json:"skipped_without_id"`
	ConsecutiveFailures int64  `json:"consecutive_failures"`
	WindowOverflows     uint64 `json:"window_overflows"`
	Seen                int    `json:"seen"`
	Healthy             bool   `json:"healthy"`
}

// ChangeFeed polls a LogSource and emits each record identifier at most once
// for the lifetime of the process. PollOnce is not meant to be called
// concurrently; the worker loop drives it from one goroutine.
type ChangeFeed struct {
	source LogSource
	seen   *SeenSet
	cfg    FeedConfig
	logger zerolog.Logger

	cycles   atomic.Uint64
	emitted  atomic.Uint64
	skipped  atomic.Uint64
	failures atomic.Int64
	overflow atomic.Uint64

	// polled is set after the first successful fetch; only later pages can
	// reveal records that left the window unobserved.
	polled atomic.Bool
}

func NewChangeFeed(source LogSource, cfg FeedConfig, logger zerolog.Logger) *ChangeFeed {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.UnhealthyAfter <= 0 {
		cfg.UnhealthyAfter = 5
	}
	return &ChangeFeed{
		source: source,
		seen:   NewSeenSet(),
		cfg:    cfg,
		logger: logger.With().Str("component", "feed").Logger(),
	}
}

// PollOnce fetches one page and returns the records not emitted before, in
// store order. A fetch failure is returned and leaves the seen set untouched.
func (f *ChangeFeed) PollOnce(ctx context.Context) ([]domain.LogRecord, error) {
	cycle := f.cycles.Add(1)
	ctx, span := telemetry.StartSpan(ctx, "feed.poll", telemetry.SpanAttributes{Operation: "poll", Cycle: cycle})
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	records, err := f.source.ListLogs(fetchCtx, domain.LogFilter{Level: f.cfg.Level, Limit: f.cfg.PageSize})
	if err != nil {
		f.recordFailure(ctx, cycle, err)
		span.SetStatus(sentry.SpanStatusUnavailable)
		return nil, fmt.Errorf("fetch logs: %w", err)
	}
	f.recordSuccess(cycle)
	baseline := !f.polled.Swap(true)

	var fresh []domain.LogRecord
	for i := range records {
		rec := records[i]
		if !rec.HasID() {
			f.skipped.Add(1)
			f.logger.Debug().Uint64("cycle", cycle).Str("app", rec.App).Msg("skipping record without id")
			continue
		}
		if f.seen.Add(rec.ID) {
			fresh = append(fresh, rec)
		}
	}
	f.emitted.Add(uint64(len(fresh)))

	if !baseline && len(records) >= f.cfg.PageSize && len(fresh) == len(records) {
		f.overflow.Add(1)
		f.logger.Warn().
			Uint64("cycle", cycle).
			Int("page_size", f.cfg.PageSize).
			Msg("every record in a full page was unseen; records may have left the window before being polled")
	}

	if len(fresh) > 0 {
		f.logger.Debug().Uint64("cycle", cycle).Int("new", len(fresh)).Msg("poll cycle emitted records")
	}
	return fresh, nil
}

// Healthy is false once UnhealthyAfter consecutive fetches have failed.
func (f *ChangeFeed) Healthy() bool {
	return f.failures.Load() < int64(f.cfg.UnhealthyAfter)
}

func (f *ChangeFeed) Stats() FeedStats {
	return FeedStats{
		Cycles:              f.cycles.Load(),
		Emitted:             f.emitted.Load(),
		SkippedWithoutID:    f.skipped.Load(),
		ConsecutiveFailures: f.failures.Load(),
		WindowOverflows:     f.overflow.Load(),
		Seen:                f.seen.Len(),
		Healthy:             f.Healthy(),
	}
}

func (f *ChangeFeed) recordFailure(ctx context.Context, cycle uint64, err error) {
	n := f.failures.Add(1)
	event := f.logger.Warn()
	if errors.Is(err, context.DeadlineExceeded) {
		event = event.Str("reason", "timeout")
	}
	event.Err(err).Uint64("cycle", cycle).Int64("consecutive_failures", n).Msg("log fetch failed, skipping cycle")

	if n == int64(f.cfg.UnhealthyAfter) {
		f.logger.Error().Int64("consecutive_failures", n).Msg("log store unreachable, feed unhealthy")
		telemetry.CaptureMessage(ctx, fmt.Sprintf("change feed unhealthy after %d consecutive fetch failures", n))
	}
}

func (f *ChangeFeed) recordSuccess(cycle uint64) {
	prev := f.failures.Swap(0)
	if prev >= int64(f.cfg.UnhealthyAfter) {
		f.logger.Info().Uint64("cycle", cycle).Int64("after_failures", prev).Msg("log store reachable again, feed healthy")
	}
}
