package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Storage backend names.
const (
	StorageBackendFile     = "file"
	StorageBackendPostgres = "postgres"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv               string
	Port                 string
	StorageBackend       string
	StoragePath          string
	DatabaseURL          string
	GeoIPDBPath          string
	GeminiAPIKey         string
	GeminiImageModel     string
	GeminiVideoModel     string
	GeminiBaseURL        string
	GenerationRetries    int
	SafetySuffix         string
	VideoPollInterval    time.Duration
	VideoPollMaxAttempts int
	HTTPReadTimeout      time.Duration
	HTTPWriteTimeout     time.Duration
	HTTPIdleTimeout      time.Duration
	RateLimitPerMin      int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		StorageBackend:       getEnv("STORAGE_BACKEND", StorageBackendFile),
		StoragePath:          getEnv("STORAGE_PATH", "data"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		GeoIPDBPath:          os.Getenv("GEOIP_DB_PATH"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiImageModel:     getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiVideoModel:     getEnv("GEMINI_VIDEO_MODEL", "veo-3.0-generate-001"),
		GeminiBaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GenerationRetries:    getEnvInt("GENERATION_RETRIES", 0),
		SafetySuffix:         os.Getenv("SAFETY_SUFFIX"),
		VideoPollInterval:    time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 10)),
		VideoPollMaxAttempts: getEnvInt("VIDEO_POLL_MAX_ATTEMPTS", 60),
		HTTPReadTimeout:      time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:     time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:      time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:      getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	switch cfg.StorageBackend {
	case StorageBackendFile:
		// Nothing to validate; the path is created on first use.
	case StorageBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres storage backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if cfg.GenerationRetries < 0 || cfg.GenerationRetries > 1 {
		return nil, fmt.Errorf("GENERATION_RETRIES must be 0 or 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
