package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/logsage/internal/api/handlers"
	"github.com/cloo-solutions/logsage/internal/config"
	"github.com/cloo-solutions/logsage/internal/database"
	"github.com/cloo-solutions/logsage/internal/repository"
	"github.com/cloo-solutions/logsage/internal/retrieval"
	"github.com/cloo-solutions/logsage/internal/server"
	"github.com/cloo-solutions/logsage/internal/service"
)

// ServeCmd runs the log store API with the analysis pipeline polling it.
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the log store API and analysis pipeline",
		Long: `Starts the HTTP log store backed by PostgreSQL and, unless --no-pipeline is
given, the change-feed poller that analyzes new ERROR records.`,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides LOGSAGE_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-pipeline", false, "Serve the log store only, without polling for errors")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("LOGSAGE_DATABASE_URL is required for serve")
	}

	log := newLogger(cfg)
	flush := initTelemetry(cfg, log)
	defer flush()

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to database")

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	logRepo := repository.NewLogRepository(pool)
	analysisRepo := repository.NewAnalysisRepository(pool)
	logSvc := service.NewLogService(logRepo, analysisRepo, repository.NewTxRunner(pool), service.DefaultUUIDGenerator{})

	s3Client, err := newS3Client(ctx, cfg, log)
	if err != nil {
		return err
	}
	var objects retrieval.ObjectGetter
	if s3Client != nil {
		objects = s3Client
	}

	corpus := buildCorpus(cfg, objects, logSvc, log)
	index, engine, err := newAnalysisEngine(ctx, cfg, corpus, log)
	if err != nil {
		return err
	}

	var pl *pipeline
	if noPipeline, _ := cmd.Flags().GetBool("no-pipeline"); !noPipeline {
		sinks := service.MultiSink{service.NewLogSink(log), service.NewRepositorySink(analysisRepo)}
		if cfg.S3Archive && s3Client != nil {
			sinks = append(sinks, service.NewArchiveSink(s3Client))
		}
		pl = newPipeline(cfg, logSvc, engine, sinks, log)
		pl.withRebuild(cfg.RebuildInterval, corpus, index)
		pl.start()
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:          log,
		HealthHandler:   handlers.NewHealthHandler(feedHealth(pl), index),
		LogHandler:      handlers.NewLogHandler(logSvc),
		AnalysisHandler: handlers.NewAnalysisHandler(logSvc, engine),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	return serveUntilSignal(srv, log, func() {
		if pl != nil {
			pl.stop()
		}
	})
}
