package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/pagination"
	"github.com/cloo-solutions/logsage/internal/service"
)

const analysisColumns = `log_id, message, issue, possible_reason, risk_level, recommended_fix, status, raw_text, cached, created_at`

type AnalysisRepository struct {
	db dbtx
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: pool}
}

func NewAnalysisRepositoryWithTx(tx pgx.Tx) *AnalysisRepository {
	return &AnalysisRepository{db: tx}
}

// Save upserts by log id; the latest analysis of a log wins.
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.AnalysisResult) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO analyses (`+analysisColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (log_id) DO UPDATE SET
		   message = EXCLUDED.message,
		   issue = EXCLUDED.issue,
		   possible_reason = EXCLUDED.possible_reason,
		   risk_level = EXCLUDED.risk_level,
		   recommended_fix = EXCLUDED.recommended_fix,
		   status = EXCLUDED.status,
		   raw_text = EXCLUDED.raw_text,
		   cached = EXCLUDED.cached,
		   created_at = EXCLUDED.created_at`,
		a.LogID, a.Message, a.Issue, a.PossibleReason, string(a.RiskLevel), a.RecommendedFix,
		string(a.Status), a.RawText, a.Cached, a.CreatedAt,
	)
	return err
}

func (r *AnalysisRepository) GetByLogID(ctx context.Context, logID string) (*domain.AnalysisResult, error) {
	a, err := scanAnalysis(r.db.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE log_id = $1`, logID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAnalysisNotFound
		}
		return nil, err
	}
	return a, nil
}

// List pages newest first. The cursor carries (created_at, log_id) of the
// last item of the previous page.
func (r *AnalysisRepository) List(ctx context.Context, filter service.AnalysisFilter, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.AnalysisResult], error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error
	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+analysisColumns+` FROM analyses
			 WHERE ($1 = '' OR risk_level = $1) AND ($2 = '' OR status = $2)
			   AND (created_at, log_id) < ($3::timestamptz, $4::text)
			 ORDER BY created_at DESC, log_id DESC
			 LIMIT $5`,
			string(filter.RiskLevel), string(filter.Status), cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+analysisColumns+` FROM analyses
			 WHERE ($1 = '' OR risk_level = $1) AND ($2 = '' OR status = $2)
			 ORDER BY created_at DESC, log_id DESC
			 LIMIT $3`,
			string(filter.RiskLevel), string(filter.Status), limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*domain.AnalysisResult{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pagination.NewPage(items, limit, func(a *domain.AnalysisResult) (string, time.Time) {
		return a.LogID, a.CreatedAt
	}), nil
}

func (r *AnalysisRepository) DeleteByLogIDs(ctx context.Context, logIDs []string) (int64, error) {
	if len(logIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM analyses WHERE log_id = ANY($1)`, logIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanAnalysis(row pgx.Row) (*domain.AnalysisResult, error) {
	var a domain.AnalysisResult
	var risk, status string
	if err := row.Scan(
		&a.LogID, &a.Message, &a.Issue, &a.PossibleReason, &risk, &a.RecommendedFix,
		&status, &a.RawText, &a.Cached, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.RiskLevel = domain.RiskLevel(risk)
	a.Status = domain.AnalysisStatus(status)
	return &a, nil
}
