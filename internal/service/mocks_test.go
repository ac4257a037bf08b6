package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/openai"
)

// MockLogSource is a mock implementation of LogSource
type MockLogSource struct {
	mock.Mock
}

func (m *MockLogSource) ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LogRecord), args.Error(1)
}

// MockReasoner is a mock implementation of Reasoner
type MockReasoner struct {
	mock.Mock
}

func (m *MockReasoner) Complete(ctx context.Context, req openai.ReasoningRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// countingReasoner answers with a fixed text and counts calls. A non-zero
// delay holds each call open before answering.
type countingReasoner struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
	delay time.Duration
	last  openai.ReasoningRequest
}

func (r *countingReasoner) Complete(_ context.Context, req openai.ReasoningRequest) (string, error) {
	r.mu.Lock()
	r.calls++
	delay := r.delay
	r.mu.Unlock()
	time.Sleep(delay)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = req
	return r.text, r.err
}

func (r *countingReasoner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// MockAnalysisSaver is a mock implementation of AnalysisSaver
type MockAnalysisSaver struct {
	mock.Mock
}

func (m *MockAnalysisSaver) Save(ctx context.Context, result *domain.AnalysisResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

// MockObjectPutter is a mock implementation of ObjectPutter
type MockObjectPutter struct {
	mock.Mock
}

func (m *MockObjectPutter) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func records(ids ...string) []domain.LogRecord {
	out := make([]domain.LogRecord, len(ids))
	for i, id := range ids {
		out[i] = domain.LogRecord{ID: id, Level: "ERROR", Message: "message " + id}
	}
	return out
}

func ids(recs []domain.LogRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
