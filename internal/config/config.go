package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string
	// UpstreamBaseURL is the content backend that serves question payloads
	// and answer keys, e.g. "https://api.example.com".
	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	JWTSecret       string
	// RedisURL selects the Redis-backed result handoff store and enables the
	// submission retry worker. Empty means in-memory handoff and no worker.
	RedisURL         string
	HandoffNamespace string
	HandoffTTL       time.Duration
	// ExamDuration is the session countdown applied when the upstream payload
	// does not carry a duration of its own.
	ExamDuration time.Duration
	// ScaleTablePath optionally points to a JSON score-conversion table that
	// overrides the built-in one.
	ScaleTablePath string
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		UpstreamBaseURL:  getEnv("UPSTREAM_BASE_URL", "http://localhost:3000/api"),
		UpstreamTimeout:  time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 15)) * time.Second,
		JWTSecret:        getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		RedisURL:         getEnv("REDIS_URL", ""),
		HandoffNamespace: getEnv("HANDOFF_NAMESPACE", "toeic_result"),
		HandoffTTL:       time.Duration(getEnvInt("HANDOFF_TTL_HOURS", 24)) * time.Hour,
		ExamDuration:     time.Duration(getEnvInt("EXAM_DURATION_MINUTES", 120)) * time.Minute,
		ScaleTablePath:   getEnv("SCALE_TABLE_PATH", ""),
		AllowedOrigins:   parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
