package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL    string
	WorldFile   string
	SnapshotTTL time.Duration

	// Auto-tracking
	USB2SNESURL       string
	USB2SNESDevice    string
	AutotrackInterval time.Duration
	TrackerID         string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		WorldFile:   getEnv("WORLD_FILE", ""),
		SnapshotTTL: parseDuration(getEnv("SNAPSHOT_TTL", "168h"), 7*24*time.Hour),

		USB2SNESURL:       getEnv("USB2SNES_URL", "ws://localhost:23074"),
		USB2SNESDevice:    getEnv("USB2SNES_DEVICE", ""),
		AutotrackInterval: parseDuration(getEnv("AUTOTRACK_INTERVAL", "1s"), time.Second),
		TrackerID:         getEnv("TRACKER_ID", ""),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseDuration accepts Go durations or a bare number of seconds.
func parseDuration(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
