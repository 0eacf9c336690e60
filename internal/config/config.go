package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort  string
	JWTSecret string

	// Upstream genealogy API.
	GrampsAPIURL   string
	GrampsAPIToken string

	// Chat orchestration knobs.
	ChatRequestTimeout time.Duration // per chat submission request
	TaskPollInterval   time.Duration // sleep between task status checks
	TaskPollDeadline   time.Duration // total wall-clock ceiling for one task

	// Local dismissed-discoveries cache.
	DismissedDBPath string

	AllowedOrigins []string
}

// Load reads configuration from the environment. A .env file is honored
// when present (development); real environment variables win otherwise.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables only")
	}

	apiURL := getEnv("GRAMPS_API_URL", "")
	if apiURL == "" {
		return nil, fmt.Errorf("GRAMPS_API_URL environment variable is not set")
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		JWTSecret:          getEnv("JWT_SECRET", "default-super-secret-key"), // CHANGE THIS IN PRODUCTION!
		GrampsAPIURL:       strings.TrimRight(apiURL, "/"),
		GrampsAPIToken:     getEnv("GRAMPS_API_TOKEN", ""),
		ChatRequestTimeout: getDurationEnv("CHAT_REQUEST_TIMEOUT", 30*time.Second),
		TaskPollInterval:   getDurationEnv("TASK_POLL_INTERVAL", 1500*time.Millisecond),
		TaskPollDeadline:   getDurationEnv("TASK_POLL_DEADLINE", 10*time.Minute),
		DismissedDBPath:    getEnv("DISMISSED_DB_PATH", "./data/dismissed"),
		AllowedOrigins:     strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
	}

	log.Info().
		Str("port", cfg.HTTPPort).
		Str("gramps_api_url", cfg.GrampsAPIURL).
		Dur("chat_request_timeout", cfg.ChatRequestTimeout).
		Dur("task_poll_interval", cfg.TaskPollInterval).
		Dur("task_poll_deadline", cfg.TaskPollDeadline).
		Msg("configuration loaded")

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getDurationEnv parses a duration environment variable (e.g. "90s", "10m"),
// falling back on absence or parse failure.
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
		return fallback
	}
	return d
}
