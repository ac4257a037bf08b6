package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/pagination"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = domain.MaxListLimit
)

type LogRepositoryInterface interface {
	Append(ctx context.Context, records []domain.LogRecord) error
	ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error)
	GetByID(ctx context.Context, id string) (*domain.LogRecord, error)
	DeleteByID(ctx context.Context, id string) error
	// DeleteByLevel removes matching records and returns their ids. An empty
	// level matches every record.
	DeleteByLevel(ctx context.Context, level string) ([]string, error)
}

type AnalysisRepositoryInterface interface {
	Save(ctx context.Context, result *domain.AnalysisResult) error
	GetByLogID(ctx context.Context, logID string) (*domain.AnalysisResult, error)
	List(ctx context.Context, filter AnalysisFilter, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.AnalysisResult], error)
	DeleteByLogIDs(ctx context.Context, logIDs []string) (int64, error)
}

type AnalysisFilter struct {
	RiskLevel domain.RiskLevel
	Status    domain.AnalysisStatus
}

// TxRepositories exposes repositories bound to one transaction.
type TxRepositories interface {
	Logs() LogRepositoryInterface
	Analyses() AnalysisRepositoryInterface
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

type UUIDGenerator interface {
	NewString() string
}

type DefaultUUIDGenerator struct{}

func (DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// LogService is the log store: it assigns identifiers on append and keeps
// analyses in step with deletions.
type LogService struct {
	logs     LogRepositoryInterface
	analyses AnalysisRepositoryInterface
	tx       TxRunner
	ids      UUIDGenerator
	now      func() time.Time
}

func NewLogService(logs LogRepositoryInterface, analyses AnalysisRepositoryInterface, tx TxRunner, ids UUIDGenerator) *LogService {
	if ids == nil {
		ids = DefaultUUIDGenerator{}
	}
	return &LogService{logs: logs, analyses: analyses, tx: tx, ids: ids, now: time.Now}
}

// Append stores a batch and returns it with server-assigned id and
// received_at. Client-supplied ids are ignored.
func (s *LogService) Append(ctx context.Context, records []domain.LogRecord) ([]domain.LogRecord, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	receivedAt := s.now().UTC().Truncate(time.Microsecond)
	stored := make([]domain.LogRecord, len(records))
	for i, rec := range records {
		if err := domain.ValidateForAppend(&rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rec.ID = s.ids.NewString()
		rec.ReceivedAt = receivedAt
		stored[i] = rec
	}

	if err := s.logs.Append(ctx, stored); err != nil {
		return nil, domain.ErrStoreUnavailable.Wrap(fmt.Errorf("append: %w", err))
	}
	return stored, nil
}

// ListLogs returns the most recent filter.Limit records, oldest first.
func (s *LogService) ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error) {
	if filter.Limit < 0 {
		return nil, domain.ErrInvalidLimit
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	filter.Level = strings.TrimSpace(filter.Level)
	filter.App = strings.TrimSpace(filter.App)

	records, err := s.logs.ListLogs(ctx, filter)
	if err != nil {
		return nil, domain.ErrStoreUnavailable.Wrap(fmt.Errorf("list: %w", err))
	}
	return records, nil
}

func (s *LogService) GetLog(ctx context.Context, id string) (*domain.LogRecord, error) {
	return s.logs.GetByID(ctx, id)
}

// DeleteLog removes one record and its analysis.
func (s *LogService) DeleteLog(ctx context.Context, id string) error {
	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Logs().DeleteByID(ctx, id); err != nil {
			return err
		}
		_, err := repos.Analyses().DeleteByLogIDs(ctx, []string{id})
		return err
	})
}

// DeleteLogs removes every record of level, or every record when level is
// empty, and returns how many were deleted.
func (s *LogService) DeleteLogs(ctx context.Context, level string) (int, error) {
	var deleted int
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		ids, err := repos.Logs().DeleteByLevel(ctx, strings.TrimSpace(level))
		if err != nil {
			return err
		}
		if _, err := repos.Analyses().DeleteByLogIDs(ctx, ids); err != nil {
			return err
		}
		deleted = len(ids)
		return nil
	})
	if err != nil {
		return 0, domain.ErrStoreUnavailable.Wrap(fmt.Errorf("delete: %w", err))
	}
	return deleted, nil
}

func (s *LogService) GetAnalysis(ctx context.Context, logID string) (*domain.AnalysisResult, error) {
	return s.analyses.GetByLogID(ctx, logID)
}

func (s *LogService) ListAnalyses(ctx context.Context, filter AnalysisFilter, cursor string, limit int) (*pagination.PageResult[*domain.AnalysisResult], error) {
	if limit < 0 {
		return nil, domain.ErrInvalidLimit
	}
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor.Wrap(err)
	}
	if limit == 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	return s.analyses.List(ctx, filter, decoded, limit)
}
