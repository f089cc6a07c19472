package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	PrometheusPort string
	LogLevel       string
	LogFormat      string

	StoreBackend   string
	DatabaseURL    string
	MigrationsPath string

	SessionSecret string
	SessionTTL    time.Duration
	RosterPath    string

	TelegramToken string

	ScrapingBeeAPIKey string
	ScrapingBeeURL    string
	ScraperCacheTTL   time.Duration
	HTTPClientTimeout time.Duration

	CloudinaryCloudName    string
	CloudinaryUploadPreset string
	CloudinaryFolder       string
	UploadMaxBytes         int64
}

// LoadDotEnv reads a .env file into the environment when one exists.
// Variables already set win over the file.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnvOrDefault("PORT", "8080"),
		PrometheusPort:         getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", "text"),
		StoreBackend:           getEnvOrDefault("STORE_BACKEND", StorePostgres),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		MigrationsPath:         getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
		SessionSecret:          os.Getenv("SESSION_SECRET"),
		RosterPath:             os.Getenv("ROSTER_PATH"),
		TelegramToken:          os.Getenv("TELEGRAM_TOKEN"),
		ScrapingBeeAPIKey:      os.Getenv("SCRAPINGBEE_API_KEY"),
		ScrapingBeeURL:         os.Getenv("SCRAPINGBEE_URL"),
		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryUploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
		CloudinaryFolder:       getEnvOrDefault("CLOUDINARY_FOLDER", "christmas-list"),
	}

	var errs *multierror.Error
	var err error

	if cfg.SessionTTL, err = getDurationOrDefault("SESSION_TTL", 720*time.Hour); err != nil {
		errs = multierror.Append(errs, err)
	}
	if cfg.ScraperCacheTTL, err = getDurationOrDefault("SCRAPER_CACHE_TTL", 10*time.Minute); err != nil {
		errs = multierror.Append(errs, err)
	}
	if cfg.HTTPClientTimeout, err = getDurationOrDefault("HTTP_CLIENT_TIMEOUT", 20*time.Second); err != nil {
		errs = multierror.Append(errs, err)
	}
	if cfg.UploadMaxBytes, err = getInt64OrDefault("UPLOAD_MAX_BYTES", 10<<20); err != nil {
		errs = multierror.Append(errs, err)
	}

	// Required environment variables
	if cfg.SessionSecret == "" {
		errs = multierror.Append(errs, fmt.Errorf("SESSION_SECRET environment variable is required"))
	}

	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			errs = multierror.Append(errs, fmt.Errorf("DATABASE_URL environment variable is required"))
		}
	case StoreMemory:
	default:
		errs = multierror.Append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.StoreBackend))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt64OrDefault(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}
