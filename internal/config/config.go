package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/logsage/internal/domain"
)

const envPrefix = "LOGSAGE"

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	// StoreURL points `watch` at a remote log store instead of the local database.
	StoreURL string `envconfig:"STORE_URL"`

	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	PollPageSize   int           `envconfig:"POLL_PAGE_SIZE" default:"100"`
	PollLevel      string        `envconfig:"POLL_LEVEL"`
	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"5s"`
	UnhealthyAfter int           `envconfig:"UNHEALTHY_AFTER" default:"5"`

	QueueSize       int `envconfig:"QUEUE_SIZE" default:"64"`
	AnalysisWorkers int `envconfig:"ANALYSIS_WORKERS" default:"2"`
	CacheSize       int `envconfig:"CACHE_SIZE" default:"500"`
	ContextTopK     int `envconfig:"CONTEXT_TOP_K" default:"3"`

	ProviderAPIKey      string        `envconfig:"PROVIDER_API_KEY"`
	ProviderBaseURL     string        `envconfig:"PROVIDER_BASE_URL" default:"https://api.groq.com/openai/v1"`
	ProviderModel       string        `envconfig:"PROVIDER_MODEL" default:"llama-3.1-8b-instant"`
	ProviderTemperature float32       `envconfig:"PROVIDER_TEMPERATURE" default:"0.2"`
	ProviderTimeout     time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	ProviderRPS         float64       `envconfig:"PROVIDER_RPS" default:"0"`

	CorpusFile       string        `envconfig:"CORPUS_FILE"`
	CorpusS3Key      string        `envconfig:"CORPUS_S3_KEY"`
	CorpusFromStore  bool          `envconfig:"CORPUS_FROM_STORE" default:"false"`
	CorpusStoreLimit int           `envconfig:"CORPUS_STORE_LIMIT" default:"1000"`
	RebuildInterval  time.Duration `envconfig:"REBUILD_INTERVAL" default:"0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"logsage"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Archive   bool   `envconfig:"S3_ARCHIVE" default:"false"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.PollPageSize <= 0 {
		errs = append(errs, errors.New("POLL_PAGE_SIZE must be positive"))
	}
	if c.PollPageSize > domain.MaxListLimit {
		errs = append(errs, fmt.Errorf("POLL_PAGE_SIZE cannot exceed %d, the largest page the log store returns", domain.MaxListLimit))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT must be positive"))
	}
	if c.UnhealthyAfter <= 0 {
		errs = append(errs, errors.New("UNHEALTHY_AFTER must be positive"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("QUEUE_SIZE must be positive"))
	}
	if c.AnalysisWorkers <= 0 {
		errs = append(errs, errors.New("ANALYSIS_WORKERS must be positive"))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, errors.New("CACHE_SIZE must be positive"))
	}
	if c.ContextTopK <= 0 {
		errs = append(errs, errors.New("CONTEXT_TOP_K must be positive"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.RebuildInterval < 0 {
		errs = append(errs, errors.New("REBUILD_INTERVAL cannot be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasProvider() bool {
	return c.ProviderAPIKey != ""
}

func (c *Config) HasRemoteStore() bool {
	return c.StoreURL != ""
}
