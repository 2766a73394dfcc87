package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL       string
	PlacesAPIKey      string
	Port              string
	Environment       string
	LogLevel          string
	BlobBackend       string
	BlobLocalDir      string
	BlobPublicBaseURL string
	GCSBucket         string
	RateLimitStart    RateLimitConfig
	PlacesRate        RateLimitConfig
	PlacesTimeout     time.Duration
	ScrapeDelay       time.Duration
	SearchRadius      int
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		PlacesAPIKey:      os.Getenv("GOOGLE_PLACES_API_KEY"),
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		BlobBackend:       strings.ToLower(getEnv("BLOB_BACKEND", "local")),
		BlobLocalDir:      getEnv("BLOB_LOCAL_DIR", "./uploads"),
		BlobPublicBaseURL: getEnv("BLOB_PUBLIC_BASE_URL", "http://localhost:8080/uploads"),
		GCSBucket:         os.Getenv("GCS_BUCKET"),
		PlacesTimeout:     parseDuration(getEnv("PLACES_TIMEOUT", "10s"), 10*time.Second),
		ScrapeDelay:       parseDuration(getEnv("SCRAPE_DELAY", "2s"), 2*time.Second),
		SearchRadius:      parseInt(getEnv("SEARCH_RADIUS", "50000"), 50000),
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_START", "5/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_START value: %w", err)
	}
	cfg.RateLimitStart = rl

	pr, err := parseRateLimit(getEnv("PLACES_RATE", "10/sec"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLACES_RATE value: %w", err)
	}
	cfg.PlacesRate = pr

	if cfg.BlobBackend == "gcs" && cfg.GCSBucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is required when BLOB_BACKEND is gcs")
	}

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(input string, fallback int) int {
	v, err := strconv.Atoi(input)
	if err != nil {
		return fallback
	}
	return v
}
