package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/logsage/internal/service"
)

// TxRunner runs a unit of work against log and analysis repositories that
// share one transaction. Deleting logs together with their analyses relies
// on this.
type TxRunner struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// WithTx commits when fn returns nil and rolls back otherwise. fn's error is
// returned unwrapped so domain errors keep their identity.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	var fnErr error
	err := pgx.BeginTxFunc(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		fnErr = fn(txRepos{tx: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	return nil
}

type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) Logs() service.LogRepositoryInterface {
	return NewLogRepositoryWithTx(r.tx)
}

func (r txRepos) Analyses() service.AnalysisRepositoryInterface {
	return NewAnalysisRepositoryWithTx(r.tx)
}
