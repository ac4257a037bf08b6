package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cloo-solutions/logsage/internal/domain"
)

// ResultSink consumes finished analyses.
type ResultSink interface {
	Write(ctx context.Context, result domain.AnalysisResult) error
}

// AnalysisSaver persists analyses.
type AnalysisSaver interface {
	Save(ctx context.Context, result *domain.AnalysisResult) error
}

// ObjectPutter writes a single object to blob storage.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// LogSink writes each analysis as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "sink").Logger()}
}

func (s *LogSink) Write(_ context.Context, r domain.AnalysisResult) error {
	event := s.logger.Info()
	if !r.OK() {
		event = s.logger.Warn()
	}
	event.
		Str("log_id", r.LogID).
		Str("status", string(r.Status)).
		Str("risk_level", string(r.RiskLevel)).
		Bool("cached", r.Cached).
		Str("issue", r.Issue).
		Str("recommended_fix", r.RecommendedFix).
		Msg("log analyzed")
	return nil
}

// RepositorySink stores analyses in the database.
type RepositorySink struct {
	repo AnalysisSaver
}

func NewRepositorySink(repo AnalysisSaver) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Write(ctx context.Context, r domain.AnalysisResult) error {
	if err := s.repo.Save(ctx, &r); err != nil {
		return fmt.Errorf("save analysis %s: %w", r.LogID, err)
	}
	return nil
}

// ArchiveSink writes each analysis as JSON under analyses/<date>/<log id>.json.
type ArchiveSink struct {
	store ObjectPutter
}

func NewArchiveSink(store ObjectPutter) *ArchiveSink {
	return &ArchiveSink{store: store}
}

func ArchiveKey(r domain.AnalysisResult) string {
	return fmt.Sprintf("analyses/%s/%s.json", r.CreatedAt.UTC().Format("2006-01-02"), r.LogID)
}

func (s *ArchiveSink) Write(ctx context.Context, r domain.AnalysisResult) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	if err := s.store.PutObject(ctx, ArchiveKey(r), body, "application/json"); err != nil {
		return fmt.Errorf("archive analysis %s: %w", r.LogID, err)
	}
	return nil
}

// MultiSink writes to every sink; one failing sink does not stop the rest.
type MultiSink []ResultSink

func (m MultiSink) Write(ctx context.Context, r domain.AnalysisResult) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
