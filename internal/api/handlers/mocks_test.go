package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/pagination"
	"github.com/cloo-solutions/logsage/internal/service"
)

type MockLogStore struct {
	mock.Mock
}

func (m *MockLogStore) Append(ctx context.Context, records []domain.LogRecord) ([]domain.LogRecord, error) {
	args := m.Called(ctx, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LogRecord), args.Error(1)
}

func (m *MockLogStore) ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LogRecord), args.Error(1)
}

func (m *MockLogStore) GetLog(ctx context.Context, id string) (*domain.LogRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LogRecord), args.Error(1)
}

func (m *MockLogStore) DeleteLog(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLogStore) DeleteLogs(ctx context.Context, level string) (int, error) {
	args := m.Called(ctx, level)
	return args.Int(0), args.Error(1)
}

type MockAnalysisStore struct {
	mock.Mock
}

func (m *MockAnalysisStore) GetAnalysis(ctx context.Context, logID string) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, logID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalysisResult), args.Error(1)
}

func (m *MockAnalysisStore) ListAnalyses(ctx context.Context, filter service.AnalysisFilter, cursor string, limit int) (*pagination.PageResult[*domain.AnalysisResult], error) {
	args := m.Called(ctx, filter, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.AnalysisResult]), args.Error(1)
}

type MockAnalyst struct {
	mock.Mock
}

func (m *MockAnalyst) Analyze(ctx context.Context, record domain.LogRecord) domain.AnalysisResult {
	return m.Called(ctx, record).Get(0).(domain.AnalysisResult)
}

func (m *MockAnalyst) Ask(ctx context.Context, question string) (string, error) {
	args := m.Called(ctx, question)
	return args.String(0), args.Error(1)
}

type stubFeed struct {
	healthy bool
	stats   service.FeedStats
}

func (s stubFeed) Healthy() bool            { return s.healthy }
func (s stubFeed) Stats() service.FeedStats { return s.stats }

type stubIndex struct {
	size       int
	generation uint64
}

func (s stubIndex) Size() int          { return s.size }
func (s stubIndex) Generation() uint64 { return s.generation }
