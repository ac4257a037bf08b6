package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/logsage/internal/domain"
)

const logColumns = `id::text, timestamp, app, url, user_agent, level, type, message, data, received_at`

type LogRepository struct {
	db dbtx
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{db: pool}
}

func NewLogRepositoryWithTx(tx pgx.Tx) *LogRepository {
	return &LogRepository{db: tx}
}

// Append inserts records that already carry an id and received_at.
func (r *LogRepository) Append(ctx context.Context, records []domain.LogRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO logs (id, timestamp, app, url, user_agent, level, type, message, data, received_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.ID, rec.Timestamp, rec.App, rec.URL, rec.UserAgent, rec.Level, rec.Type, rec.Message,
			nullableJSON(rec.Data), rec.ReceivedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert log %d: %w", i, err)
		}
	}
	return results.Close()
}

// ListLogs returns the newest filter.Limit matching records, oldest first.
// Level comparison ignores case and surrounding whitespace.
func (r *LogRepository) ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+logColumns+` FROM (
			SELECT * FROM logs
			WHERE ($1 = '' OR upper(btrim(level)) = upper(btrim($1)))
			  AND ($2 = '' OR app = $2)
			ORDER BY received_at DESC, seq DESC
			LIMIT $3
		) recent
		ORDER BY received_at ASC, seq ASC`,
		filter.Level, filter.App, filter.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.LogRecord{}
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *LogRepository) GetByID(ctx context.Context, id string) (*domain.LogRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+logColumns+` FROM logs WHERE id::text = $1`, id)
	rec, err := scanLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLogNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *LogRepository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM logs WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLogNotFound
	}
	return nil
}

func (r *LogRepository) DeleteByLevel(ctx context.Context, level string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`DELETE FROM logs
		 WHERE ($1 = '' OR upper(btrim(level)) = upper(btrim($1)))
		 RETURNING id::text`,
		level,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanLog(row pgx.Row) (*domain.LogRecord, error) {
	var rec domain.LogRecord
	var data []byte
	if err := row.Scan(
		&rec.ID, &rec.Timestamp, &rec.App, &rec.URL, &rec.UserAgent,
		&rec.Level, &rec.Type, &rec.Message, &data, &rec.ReceivedAt,
	); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		rec.Data = json.RawMessage(data)
	}
	return &rec, nil
}
