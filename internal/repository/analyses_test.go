//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/pagination"
	"github.com/cloo-solutions/logsage/internal/service"
)

func newAnalysis(risk domain.RiskLevel, createdAt time.Time) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		LogID:     uuid.NewString(),
		Message:   "db timeout",
		Issue:     "Database timeout",
		RiskLevel: risk,
		Status:    domain.AnalysisStatusOK,
		RawText:   "Issue: Database timeout",
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}
}

func TestAnalysisRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(setupPool(ctx, t))

	a := newAnalysis(domain.RiskHigh, time.Now())
	require.NoError(t, repo.Save(ctx, a))

	got, err := repo.GetByLogID(ctx, a.LogID)
	require.NoError(t, err)
	assert.Equal(t, a.LogID, got.LogID)
	assert.Equal(t, domain.RiskHigh, got.RiskLevel)
	assert.Equal(t, domain.AnalysisStatusOK, got.Status)
	assert.True(t, a.CreatedAt.Equal(got.CreatedAt))
}

func TestAnalysisRepository_SaveUpsertsByLogID(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(setupPool(ctx, t))

	a := newAnalysis(domain.RiskLow, time.Now())
	require.NoError(t, repo.Save(ctx, a))

	a.RiskLevel = domain.RiskCritical
	a.Cached = true
	require.NoError(t, repo.Save(ctx, a))

	got, err := repo.GetByLogID(ctx, a.LogID)
	require.NoError(t, err)
	assert.Equal(t, domain.RiskCritical, got.RiskLevel)
	assert.True(t, got.Cached)
}

func TestAnalysisRepository_GetByLogID_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(setupPool(ctx, t))

	_, err := repo.GetByLogID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)
}

func TestAnalysisRepository_ListPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(setupPool(ctx, t))

	base := time.Now().Add(-time.Hour)
	var saved []*domain.AnalysisResult
	for i := 0; i < 5; i++ {
		a := newAnalysis(domain.RiskMedium, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Save(ctx, a))
		saved = append(saved, a)
	}

	first, err := repo.List(ctx, service.AnalysisFilter{}, nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, saved[4].LogID, first.Items[0].LogID)
	assert.Equal(t, saved[3].LogID, first.Items[1].LogID)

	cursor, err := pagination.DecodeCursor(first.Cursor)
	require.NoError(t, err)

	second, err := repo.List(ctx, service.AnalysisFilter{}, cursor, 10)
	require.NoError(t, err)
	require.Len(t, second.Items, 3)
	assert.False(t, second.HasMore)
	assert.Empty(t, second.Cursor)
	assert.Equal(t, saved[0].LogID, second.Items[2].LogID)
}

func TestAnalysisRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(setupPool(ctx, t))

	now := time.Now()
	high := newAnalysis(domain.RiskHigh, now)
	require.NoError(t, repo.Save(ctx, high))
	require.NoError(t, repo.Save(ctx, newAnalysis(domain.RiskLow, now)))
	failed := newAnalysis(domain.RiskUnknown, now)
	failed.Status = domain.AnalysisStatusProviderError
	require.NoError(t, repo.Save(ctx, failed))

	page, err := repo.List(ctx, service.AnalysisFilter{RiskLevel: domain.RiskHigh}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, high.LogID, page.Items[0].LogID)

	page, err = repo.List(ctx, service.AnalysisFilter{Status: domain.AnalysisStatusProviderError}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, failed.LogID, page.Items[0].LogID)
}

func TestAnalysisRepository_DeleteByLogIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(setupPool(ctx, t))

	a := newAnalysis(domain.RiskHigh, time.Now())
	b := newAnalysis(domain.RiskHigh, time.Now())
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	n, err := repo.DeleteByLogIDs(ctx, []string{a.LogID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteByLogIDs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.GetByLogID(ctx, b.LogID)
	assert.NoError(t, err)
}

func TestTxRunner_DeleteLogRemovesAnalysis(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	logs := NewLogRepository(pool)
	analyses := NewAnalysisRepository(pool)
	svc := service.NewLogService(logs, analyses, NewTxRunner(pool), nil)

	stored, err := svc.Append(ctx, []domain.LogRecord{{Level: "ERROR", Message: "boom"}})
	require.NoError(t, err)

	a := newAnalysis(domain.RiskHigh, time.Now())
	a.LogID = stored[0].ID
	require.NoError(t, analyses.Save(ctx, a))

	require.NoError(t, svc.DeleteLog(ctx, stored[0].ID))

	_, err = analyses.GetByLogID(ctx, stored[0].ID)
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)
}

func TestTxRunner_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	analyses := NewAnalysisRepository(pool)
	runner := NewTxRunner(pool)

	a := newAnalysis(domain.RiskHigh, time.Now())
	require.NoError(t, analyses.Save(ctx, a))

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if _, err := repos.Analyses().DeleteByLogIDs(ctx, []string{a.LogID}); err != nil {
			return err
		}
		return repos.Logs().DeleteByID(ctx, uuid.NewString())
	})
	assert.ErrorIs(t, err, domain.ErrLogNotFound)

	_, err = analyses.GetByLogID(ctx, a.LogID)
	assert.NoError(t, err)
}
