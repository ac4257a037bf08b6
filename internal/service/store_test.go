package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/pagination"
)

// MockLogRepository is a mock implementation of LogRepositoryInterface
type MockLogRepository struct {
	mock.Mock
}

func (m *MockLogRepository) Append(ctx context.Context, records []domain.LogRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockLogRepository) ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LogRecord), args.Error(1)
}

func (m *MockLogRepository) GetByID(ctx context.Context, id string) (*domain.LogRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LogRecord), args.Error(1)
}

func (m *MockLogRepository) DeleteByID(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLogRepository) DeleteByLevel(ctx context.Context, level string) ([]string, error) {
	args := m.Called(ctx, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockAnalysisRepository is a mock implementation of AnalysisRepositoryInterface
type MockAnalysisRepository struct {
	mock.Mock
}

func (m *MockAnalysisRepository) Save(ctx context.Context, result *domain.AnalysisResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockAnalysisRepository) GetByLogID(ctx context.Context, logID string) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, logID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalysisResult), args.Error(1)
}

func (m *MockAnalysisRepository) List(ctx context.Context, filter AnalysisFilter, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.AnalysisResult], error) {
	args := m.Called(ctx, filter, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.AnalysisResult]), args.Error(1)
}

func (m *MockAnalysisRepository) DeleteByLogIDs(ctx context.Context, logIDs []string) (int64, error) {
	args := m.Called(ctx, logIDs)
	return args.Get(0).(int64), args.Error(1)
}

// fakeTxRunner runs fn against the same mocks without a real transaction.
type fakeTxRunner struct {
	logs     *MockLogRepository
	analyses *MockAnalysisRepository
}

func (f *fakeTxRunner) WithTx(_ context.Context, fn func(repos TxRepositories) error) error {
	return fn(f)
}

func (f *fakeTxRunner) Logs() LogRepositoryInterface           { return f.logs }
func (f *fakeTxRunner) Analyses() AnalysisRepositoryInterface { return f.analyses }

type sequentialIDs struct{ n int }

func (s *sequentialIDs) NewString() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

func newTestLogService() (*LogService, *MockLogRepository, *MockAnalysisRepository) {
	logs := new(MockLogRepository)
	analyses := new(MockAnalysisRepository)
	svc := NewLogService(logs, analyses, &fakeTxRunner{logs: logs, analyses: analyses}, &sequentialIDs{})
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, logs, analyses
}

func TestLogService_Append_AssignsIDsAndReceivedAt(t *testing.T) {
	svc, logs, _ := newTestLogService()
	logs.On("Append", mock.Anything, mock.MatchedBy(func(recs []domain.LogRecord) bool {
		return len(recs) == 2 && recs[0].ID == "id-1" && recs[1].ID == "id-2"
	})).Return(nil)

	stored, err := svc.Append(context.Background(), []domain.LogRecord{
		{ID: "client-supplied", Level: "ERROR", Message: "boom"},
		{Level: "INFO", Message: "ok"},
	})

	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "id-1", stored[0].ID)
	assert.Equal(t, "id-2", stored[1].ID)
	assert.Equal(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), stored[0].ReceivedAt)
	logs.AssertExpectations(t)
}

func TestLogService_Append_EmptyBatch(t *testing.T) {
	svc, logs, _ := newTestLogService()

	_, err := svc.Append(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrEmptyBatch)
	logs.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestLogService_Append_InvalidRecordRejectsBatch(t *testing.T) {
	svc, logs, _ := newTestLogService()

	_, err := svc.Append(context.Background(), []domain.LogRecord{{Level: "ERROR"}, {Message: "no level"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
	assert.Contains(t, err.Error(), "record 1")
	logs.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestLogService_Append_RepositoryError(t *testing.T) {
	svc, logs, _ := newTestLogService()
	logs.On("Append", mock.Anything, mock.Anything).Return(errors.New("conn reset"))

	_, err := svc.Append(context.Background(), []domain.LogRecord{{Level: "ERROR"}})

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorContains(t, err, "conn reset")
}

func TestLogService_ListLogs_Limits(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		expected int
	}{
		{"default", 0, DefaultListLimit},
		{"explicit", 10, 10},
		{"clamped", 5000, MaxListLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, logs, _ := newTestLogService()
			logs.On("ListLogs", mock.Anything, domain.LogFilter{Level: "ERROR", App: "shop", Limit: tt.expected}).
				Return([]domain.LogRecord{}, nil)

			_, err := svc.ListLogs(context.Background(), domain.LogFilter{Level: " ERROR ", App: "shop", Limit: tt.limit})

			require.NoError(t, err)
			logs.AssertExpectations(t)
		})
	}
}

func TestLogService_ListLogs_NegativeLimit(t *testing.T) {
	svc, _, _ := newTestLogService()

	_, err := svc.ListLogs(context.Background(), domain.LogFilter{Limit: -1})

	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestLogService_DeleteLog_RemovesAnalysis(t *testing.T) {
	svc, logs, analyses := newTestLogService()
	logs.On("DeleteByID", mock.Anything, "id-9").Return(nil)
	analyses.On("DeleteByLogIDs", mock.Anything, []string{"id-9"}).Return(int64(1), nil)

	err := svc.DeleteLog(context.Background(), "id-9")

	require.NoError(t, err)
	logs.AssertExpectations(t)
	analyses.AssertExpectations(t)
}

func TestLogService_DeleteLog_NotFound(t *testing.T) {
	svc, logs, analyses := newTestLogService()
	logs.On("DeleteByID", mock.Anything, "missing").Return(domain.ErrLogNotFound)

	err := svc.DeleteLog(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrLogNotFound)
	analyses.AssertNotCalled(t, "DeleteByLogIDs", mock.Anything, mock.Anything)
}

func TestLogService_DeleteLogs_ByLevel(t *testing.T) {
	svc, logs, analyses := newTestLogService()
	logs.On("DeleteByLevel", mock.Anything, "ERROR").Return([]string{"a", "b"}, nil)
	analyses.On("DeleteByLogIDs", mock.Anything, []string{"a", "b"}).Return(int64(2), nil)

	n, err := svc.DeleteLogs(context.Background(), " ERROR ")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLogService_ListAnalyses_InvalidCursor(t *testing.T) {
	svc, _, analyses := newTestLogService()

	_, err := svc.ListAnalyses(context.Background(), AnalysisFilter{}, "%%%", 10)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	analyses.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLogService_ListAnalyses_DecodesCursor(t *testing.T) {
	svc, _, analyses := newTestLogService()
	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	cursor := pagination.EncodeCursor("log-7", ts)
	page := &pagination.PageResult[*domain.AnalysisResult]{}
	analyses.On("List", mock.Anything, AnalysisFilter{RiskLevel: domain.RiskHigh}, &pagination.Cursor{LastID: "log-7", Timestamp: ts}, DefaultListLimit).
		Return(page, nil)

	got, err := svc.ListAnalyses(context.Background(), AnalysisFilter{RiskLevel: domain.RiskHigh}, cursor, 0)

	require.NoError(t, err)
	assert.Same(t, page, got)
}
