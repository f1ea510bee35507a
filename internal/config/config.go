package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	LogLevel slog.Level

	// Data layout
	DataDir      string
	SubjectsFile string

	// Catalog connection
	CatalogURL         string
	CatalogToken       string
	CatalogInsecureTLS bool

	// Publishing
	PublishEnabled    bool
	PublishMaxRetries int

	// Auth
	APIKey string

	// Result store
	DBDriver string
	DBDSN    string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Conversion
	SofficePath          string
	ConvertTimeout       time.Duration
	ConvertMaxRetries    int
	ConvertRetryInterval time.Duration
	PreviewPDF           bool
}

func Load() Config {
	cfg := Config{
		Port:     envOr("PORT", "8000"),
		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),

		DataDir:      envOr("DATA_DIR", "./data"),
		SubjectsFile: envOr("SUBJECTS_FILE", "./data/subjects.json"),

		CatalogURL:         envOr("CATALOG_URL", os.Getenv("SINGLE_ITEM_URL")),
		CatalogToken:       envOr("CATALOG_TOKEN", os.Getenv("TOKEN")),
		CatalogInsecureTLS: envBool("CATALOG_INSECURE_TLS", false),

		PublishEnabled:    envBool("PUBLISH_ENABLED", true),
		PublishMaxRetries: envInt("PUBLISH_MAX_RETRIES", 3),

		APIKey: os.Getenv("API_KEY"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", "./data/itemgest.db"),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		SofficePath:          os.Getenv("SOFFICE_PATH"),
		ConvertTimeout:       envDuration("CONVERT_TIMEOUT", 2*time.Minute),
		ConvertMaxRetries:    envInt("CONVERT_MAX_RETRIES", 10),
		ConvertRetryInterval: envDuration("CONVERT_RETRY_INTERVAL", 2*time.Second),
		PreviewPDF:           envBool("PREVIEW_PDF", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.PublishMaxRetries <= 0 {
		cfg.PublishMaxRetries = 3
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = 2 * time.Minute
	}
	if cfg.ConvertMaxRetries <= 0 {
		cfg.ConvertMaxRetries = 10
	}
	if cfg.ConvertRetryInterval <= 0 {
		cfg.ConvertRetryInterval = 2 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.PublishEnabled {
		if c.CatalogURL == "" {
			return fmt.Errorf("CATALOG_URL is required when PUBLISH_ENABLED is set")
		}
		if c.CatalogToken == "" {
			return fmt.Errorf("CATALOG_TOKEN is required when PUBLISH_ENABLED is set")
		}
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return lvl
}
