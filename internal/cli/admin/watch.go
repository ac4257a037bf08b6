package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/logsage/internal/api/handlers"
	"github.com/cloo-solutions/logsage/internal/cli/client"
	"github.com/cloo-solutions/logsage/internal/config"
	"github.com/cloo-solutions/logsage/internal/database"
	"github.com/cloo-solutions/logsage/internal/repository"
	"github.com/cloo-solutions/logsage/internal/retrieval"
	"github.com/cloo-solutions/logsage/internal/server"
	"github.com/cloo-solutions/logsage/internal/service"
)

// WatchCmd runs the analysis pipeline against a remote log store.
func WatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Analyze errors from a remote log store",
		Long: `Polls the log store at LOGSAGE_STORE_URL for new ERROR records and analyzes them.
Health, ask and analyze endpoints are served locally. When LOGSAGE_DATABASE_URL is set,
analyses are also persisted and browsable under /analyses.`,
		RunE: runWatch,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides LOGSAGE_PORT)")
	cmd.Flags().String("store-url", "", "Remote log store URL (overrides LOGSAGE_STORE_URL)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	if storeURL, _ := cmd.Flags().GetString("store-url"); storeURL != "" {
		cfg.StoreURL = storeURL
	}
	if !cfg.HasRemoteStore() {
		return fmt.Errorf("LOGSAGE_STORE_URL is required for watch")
	}
	if err := client.ValidateAPIURL(cfg.StoreURL); err != nil {
		return fmt.Errorf("invalid store URL: %w", err)
	}

	log := newLogger(cfg)
	flush := initTelemetry(cfg, log)
	defer flush()

	remote := client.NewAPIClientWithConfig(cfg.StoreURL, cfg.FetchTimeout)
	log.Info().Str("store", cfg.StoreURL).Msg("watching remote log store")

	sinks := service.MultiSink{service.NewLogSink(log)}
	var analyses handlers.AnalysisStore

	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
			if err := database.Migrate(cfg.DatabaseURL, log); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		analysisRepo := repository.NewAnalysisRepository(pool)
		sinks = append(sinks, service.NewRepositorySink(analysisRepo))
		analyses = service.NewLogService(repository.NewLogRepository(pool), analysisRepo, repository.NewTxRunner(pool), service.DefaultUUIDGenerator{})
	}

	s3Client, err := newS3Client(ctx, cfg, log)
	if err != nil {
		return err
	}
	var objects retrieval.ObjectGetter
	if s3Client != nil {
		objects = s3Client
		if cfg.S3Archive {
			sinks = append(sinks, service.NewArchiveSink(s3Client))
		}
	}

	corpus := buildCorpus(cfg, objects, remote, log)
	index, engine, err := newAnalysisEngine(ctx, cfg, corpus, log)
	if err != nil {
		return err
	}

	pl := newPipeline(cfg, remote, engine, sinks, log)
	pl.withRebuild(cfg.RebuildInterval, corpus, index)
	pl.start()

	router := server.NewRouter(server.RouterConfig{
		Logger:          log,
		HealthHandler:   handlers.NewHealthHandler(feedHealth(pl), index),
		AnalysisHandler: handlers.NewAnalysisHandler(analyses, engine),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	return serveUntilSignal(srv, log, pl.stop)
}
