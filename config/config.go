package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration parameters, loaded from environment variables.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Shared secret for the ingestion webhook and pipeline endpoints.
	// Empty disables the check (local development only).
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Scrape-result store (dataset items are fetched here by handle).
	ScrapeHubBaseURL string `envconfig:"SCRAPEHUB_BASE_URL" default:"https://api.scrapehub.io/v2"`
	ScrapeHubToken   string `envconfig:"SCRAPEHUB_TOKEN" required:"true"`

	// External AI extraction service (OpenAI-compatible endpoint).
	AIBaseURL        string `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIAPIKey         string `envconfig:"AI_API_KEY" required:"true"`
	AIModel          string `envconfig:"AI_MODEL" default:"deepseek/deepseek-v3"`
	AITimeoutSeconds int    `envconfig:"AI_TIMEOUT_SECONDS" default:"45"`

	// Pipeline tuning.
	ClaimCeiling         int `envconfig:"CLAIM_CEILING" default:"50"`
	WorkerBatchSize      int `envconfig:"WORKER_BATCH_SIZE" default:"10"`
	WorkerConcurrency    int `envconfig:"WORKER_CONCURRENCY" default:"4"`
	CooldownSeconds      int `envconfig:"COOLDOWN_SECONDS" default:"5"`
	CircuitThreshold     int `envconfig:"CIRCUIT_THRESHOLD" default:"3"`
	PendingRefreshRounds int `envconfig:"PENDING_REFRESH_ROUNDS" default:"5"`

	// Reviews stuck in processing longer than this are swept back to pending.
	ProcessingTimeoutMinutes int    `envconfig:"PROCESSING_TIMEOUT_MINUTES" default:"15"`
	SweepSchedule            string `envconfig:"SWEEP_SCHEDULE" default:"*/10 * * * *"`
	PipelineSchedule         string `envconfig:"PIPELINE_SCHEDULE" default:"0 3 * * *"`

	// Raw webhook payloads are archived here for audit.
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY" required:"true"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET" required:"true"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL" required:"true"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" required:"true"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET" required:"true"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// AITimeout returns the per-call extraction timeout.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// ProcessingTimeout returns the stuck-processing threshold.
func (c *Config) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutMinutes) * time.Minute
}

// Cooldown returns the delay between orchestrator rounds.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
