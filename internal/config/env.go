package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig defines the HTTP front-end.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	RunDispatcher   bool

	// GenerateRateLimit caps POST /generate per client per minute; 0 disables.
	GenerateRateLimit int
}

// WorkerConfig defines generation worker behavior.
type WorkerConfig struct {
	Concurrency int
	JobTimeout  time.Duration
	DequeueWait time.Duration
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL string
	Stream   string
	Group    string
}

// StorageConfig selects where finished worksheets are kept.
type StorageConfig struct {
	Backend    string // "local"|"s3"
	ResultDir  string
	S3Bucket   string
	S3Prefix   string
	Passphrase string

	// Local results older than RetainFor are pruned; 0 keeps them forever.
	RetainFor time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Server   ServerConfig
	Worker   WorkerConfig
	Queue    QueueConfig
	Storage  StorageConfig
	HeroPath string
}

// LoadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func LoadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/homeworkhero.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_homeworkhero",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:              getEnv("PORT", "8080"),
		ShutdownTimeout:   parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		RunDispatcher:     parseBool(getEnv("RUN_DISPATCHER", "1")),
		GenerateRateLimit: parseInt(getEnv("GENERATE_RATE_LIMIT", "30"), 30),
	}

	cfg.Worker = WorkerConfig{
		Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
		JobTimeout:  parseDuration(getEnv("JOB_TIMEOUT", "30s"), 30*time.Second),
		DequeueWait: parseDuration(getEnv("QUEUE_DEQUEUE_WAIT", "2s"), 2*time.Second),
	}

	cfg.Queue = QueueConfig{
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:   getEnv("QUEUE_STREAM", "jobs:worksheets"),
		Group:    getEnv("QUEUE_GROUP", "workers:worksheets"),
	}

	cfg.Storage = StorageConfig{
		Backend:    strings.ToLower(getEnv("RESULT_BACKEND", "local")),
		ResultDir:  getEnv("RESULT_DIR", "results"),
		S3Bucket:   getEnv("AWS_S3_BUCKET", ""),
		S3Prefix:   getEnv("AWS_S3_PREFIX", "worksheets/"),
		Passphrase: getEnv("RESULT_PASSPHRASE", ""),
		RetainFor:  parseDuration(getEnv("RESULT_RETAIN_FOR", "168h"), 7*24*time.Hour),
	}

	cfg.HeroPath = getEnv(HeroConfigEnv, "")
	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
